package service

import (
	"context"

	"creditshop/pkg/asaas"
)

// Gateway is the slice of the Asaas client the settlement core needs.
// *asaas.Client satisfies it; tests substitute fakes.
type Gateway interface {
	Env() asaas.Env
	CreateCustomer(ctx context.Context, profile asaas.CustomerProfile) (string, error)
	CreatePayment(ctx context.Context, req asaas.PaymentRequest) (*asaas.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*asaas.Payment, error)
	GetPixQrCode(ctx context.Context, paymentID string) (*asaas.PixQrCode, error)
}

// GatewayResolver builds the gateway client for the environment a request
// resolved to. Fails when no credential is configured for that environment.
type GatewayResolver func(env asaas.Env) (Gateway, error)
