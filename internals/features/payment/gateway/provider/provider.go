package provider

import (
	"fmt"

	"templeseva_backend/internals/configs"
	"templeseva_backend/internals/features/payment/gateway"
	"templeseva_backend/internals/features/payment/gateway/hdfc"
	"templeseva_backend/internals/features/payment/gateway/midtrans"
	"templeseva_backend/internals/features/payment/gateway/razorpay"
	"templeseva_backend/internals/features/payment/normalizer"

	"go.uber.org/zap"
)

// New returns the gateway client selected by PAYMENT_PROVIDER.
func New(cfg configs.GatewayConfig, log *zap.Logger) (gateway.Client, error) {
	switch cfg.Provider {
	case hdfc.ProviderName:
		return hdfc.New(cfg.HDFC, cfg.Timeout, log), nil
	case midtrans.ProviderName:
		return midtrans.New(cfg.Midtrans, cfg.Timeout, log), nil
	case razorpay.ProviderName:
		return razorpay.New(cfg.Razorpay, cfg.Timeout, log), nil
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
}

// StatusTable is the extraction table for payloads of the named provider.
func StatusTable(provider string) normalizer.Table {
	switch provider {
	case midtrans.ProviderName:
		return normalizer.MidtransTable
	case razorpay.ProviderName:
		return normalizer.RazorpayTable
	}
	return normalizer.DefaultTable
}
