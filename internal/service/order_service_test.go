package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"creditshop/internal/models"
	"creditshop/pkg/asaas"

	"github.com/stretchr/testify/require"
)

func TestCreateOrderNoCoupon(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	gw := &fakeGateway{}
	svc := NewOrderService(db, testConfig())

	result, err := svc.CreateOrder(context.Background(), gw, user.ID, CreateOrderInput{
		Quantity:      5,
		PaymentMethod: models.MethodPix,
	})
	require.NoError(t, err)
	require.Equal(t, 249.50, result.Value)
	require.Equal(t, 0.0, result.Discount)
	require.Equal(t, "PENDING", result.Status)
	require.Nil(t, result.UpdatedCredits)
	require.NotNil(t, result.Pix)
	require.Contains(t, result.Pix.ImageSrc, "base64,")
	require.True(t, strings.HasPrefix(result.OrderRef, "cs-"))

	var txn models.Transaction
	require.NoError(t, db.Where("asaas_payment_id = ?", "pay_001").First(&txn).Error)
	require.Equal(t, result.OrderRef, txn.OrderRef)
	require.Equal(t, models.StatusPending, txn.Status)
	require.Equal(t, 49.90, txn.UnitPrice)
	require.Equal(t, 249.50, txn.TotalAmount)
	require.Nil(t, txn.CouponCode)

	// Customer id was registered and persisted for reuse.
	var updated models.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	require.NotNil(t, updated.AsaasCustomerID)
	require.Equal(t, "cus_001", *updated.AsaasCustomerID)
	require.EqualValues(t, 0, updated.Credits)
}

func TestCreateOrderPercentageCoupon(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	createCoupon(t, db, models.Coupon{Code: "SAVE10", DiscountType: models.DiscountPercentage, Value: 10})
	svc := NewOrderService(db, testConfig())

	result, err := svc.CreateOrder(context.Background(), &fakeGateway{}, user.ID, CreateOrderInput{
		Quantity:      5,
		PaymentMethod: models.MethodPix,
		CouponCode:    "save10",
	})
	require.NoError(t, err)
	require.Equal(t, 24.95, result.Discount)
	require.Equal(t, 224.55, result.Value)

	// Validity was checked but the use is only consumed at confirmation.
	var coupon models.Coupon
	require.NoError(t, db.Where("code = ?", "SAVE10").First(&coupon).Error)
	require.EqualValues(t, 0, coupon.UsesCount)
}

func TestCreateOrderFixedCoupon(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	createCoupon(t, db, models.Coupon{Code: "FLAT20", DiscountType: models.DiscountFixed, Value: 20})
	svc := NewOrderService(db, testConfig())

	result, err := svc.CreateOrder(context.Background(), &fakeGateway{}, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
		CouponCode:    "FLAT20",
	})
	require.NoError(t, err)
	require.Equal(t, 20.00, result.Discount)
	require.Equal(t, 29.90, result.Value)
}

func TestCreateOrderDiscountClampsToMinCharge(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	createCoupon(t, db, models.Coupon{Code: "MEGA100", DiscountType: models.DiscountFixed, Value: 100})
	svc := NewOrderService(db, testConfig())

	result, err := svc.CreateOrder(context.Background(), &fakeGateway{}, user.ID, CreateOrderInput{
		Quantity:      1, // gross 49.90, discount 100 would go negative
		PaymentMethod: models.MethodPix,
		CouponCode:    "MEGA100",
	})
	require.NoError(t, err)
	require.Equal(t, 0.01, result.Value)
}

func TestCreateOrderCouponInvalid(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	svc := NewOrderService(db, testConfig())

	_, err := svc.CreateOrder(context.Background(), &fakeGateway{}, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
		CouponCode:    "NOPE",
	})
	require.ErrorIs(t, err, ErrCouponInvalid)
}

func TestCreateOrderCouponExpired(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	past := time.Now().Add(-time.Hour)
	createCoupon(t, db, models.Coupon{Code: "OLD", DiscountType: models.DiscountFixed, Value: 5, ExpiresAt: &past})
	svc := NewOrderService(db, testConfig())

	_, err := svc.CreateOrder(context.Background(), &fakeGateway{}, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
		CouponCode:    "OLD",
	})
	require.ErrorIs(t, err, ErrCouponInvalid)
}

func TestCreateOrderCouponExhausted(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	max := int64(3)
	createCoupon(t, db, models.Coupon{Code: "CAP3", DiscountType: models.DiscountFixed, Value: 5, MaxUses: &max, UsesCount: 3})
	svc := NewOrderService(db, testConfig())

	_, err := svc.CreateOrder(context.Background(), &fakeGateway{}, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
		CouponCode:    "CAP3",
	})
	require.ErrorIs(t, err, ErrCouponExhausted)
}

func TestCreateOrderReusesStoredCustomer(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	existing := "cus_stored"
	user.AsaasCustomerID = &existing
	require.NoError(t, db.Save(user).Error)

	gw := &fakeGateway{}
	svc := NewOrderService(db, testConfig())
	_, err := svc.CreateOrder(context.Background(), gw, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
	})
	require.NoError(t, err)
	require.Equal(t, 0, gw.customerCalls)
}

func TestCreateOrderStaleCustomerSelfHeal(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	stale := "cus_stale"
	user.AsaasCustomerID = &stale
	require.NoError(t, db.Save(user).Error)

	attempts := 0
	gw := &fakeGateway{
		createCustomerFn: func(asaas.CustomerProfile) (string, error) {
			return "cus_fresh", nil
		},
		createPaymentFn: func(req asaas.PaymentRequest) (*asaas.Payment, error) {
			attempts++
			if req.Customer == "cus_stale" {
				return nil, &asaas.APIError{StatusCode: 400, Code: "invalid_customer", Description: "invalid customer"}
			}
			return &asaas.Payment{ID: "pay_healed", Status: "PENDING", BillingType: "PIX"}, nil
		},
	}
	svc := NewOrderService(db, testConfig())
	result, err := svc.CreateOrder(context.Background(), gw, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
	})
	require.NoError(t, err)
	require.Equal(t, "pay_healed", result.PaymentID)
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, gw.customerCalls)

	var updated models.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	require.Equal(t, "cus_fresh", *updated.AsaasCustomerID)
}

func TestCreateOrderStaleCustomerRetriedOnlyOnce(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	stale := "cus_stale"
	user.AsaasCustomerID = &stale
	require.NoError(t, db.Save(user).Error)

	gw := &fakeGateway{
		createCustomerFn: func(asaas.CustomerProfile) (string, error) {
			return "cus_fresh", nil
		},
		createPaymentFn: func(asaas.PaymentRequest) (*asaas.Payment, error) {
			return nil, &asaas.APIError{StatusCode: 400, Code: "invalid_customer", Description: "invalid customer"}
		},
	}
	svc := NewOrderService(db, testConfig())
	_, err := svc.CreateOrder(context.Background(), gw, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
	})
	require.ErrorIs(t, err, ErrGateway)
	require.Equal(t, 2, gw.paymentCalls)
}

func TestCreateOrderGatewayFailureRollsBack(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	gw := &fakeGateway{
		createPaymentFn: func(asaas.PaymentRequest) (*asaas.Payment, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewOrderService(db, testConfig())
	_, err := svc.CreateOrder(context.Background(), gw, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
	})
	require.ErrorIs(t, err, ErrGateway)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
	// Customer registration was rolled back with everything else.
	var updated models.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	require.Nil(t, updated.AsaasCustomerID)
}

func TestCreateOrderAddressRequired(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	cfg := testConfig()
	cfg.Payment.RequireAddress = true
	svc := NewOrderService(db, cfg)

	_, err := svc.CreateOrder(context.Background(), &fakeGateway{}, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
	})
	require.ErrorIs(t, err, ErrAddressRequired)

	user.PostalCode = "01310-100"
	user.Number = "42"
	require.NoError(t, db.Save(user).Error)
	_, err = svc.CreateOrder(context.Background(), &fakeGateway{}, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
	})
	require.NoError(t, err)
}

func TestCreateOrderImmediateConfirmation(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 2)
	createCoupon(t, db, models.Coupon{Code: "SAVE10", DiscountType: models.DiscountPercentage, Value: 10})
	gw := &fakeGateway{
		createPaymentFn: func(req asaas.PaymentRequest) (*asaas.Payment, error) {
			return &asaas.Payment{
				ID:            "pay_card",
				Status:        "CONFIRMED",
				BillingType:   "CREDIT_CARD",
				ConfirmedDate: "2026-08-30 14:00:00",
				PaymentDate:   "2026-08-30",
			}, nil
		},
	}
	svc := NewOrderService(db, testConfig())
	result, err := svc.CreateOrder(context.Background(), gw, user.ID, CreateOrderInput{
		Quantity:      5,
		PaymentMethod: models.MethodCard,
		CouponCode:    "SAVE10",
		Card:          &CardDetails{HolderName: "MARIA SILVA", Number: "4111 1111 1111 1111", ExpiryMonth: "12", ExpiryYear: "2030", CCV: "123"},
	})
	require.NoError(t, err)
	require.Equal(t, "CONFIRMED", result.Status)
	require.NotNil(t, result.UpdatedCredits)
	require.EqualValues(t, 7, *result.UpdatedCredits)
	require.NotNil(t, result.PaidAt)
	require.Nil(t, result.Pix)

	var txn models.Transaction
	require.NoError(t, db.Where("asaas_payment_id = ?", "pay_card").First(&txn).Error)
	require.Equal(t, models.StatusConfirmed, txn.Status)
	// Settlement timestamp prefers the gateway confirmation date.
	require.Equal(t, 14, txn.PaidAt.Hour())

	var coupon models.Coupon
	require.NoError(t, db.Where("code = ?", "SAVE10").First(&coupon).Error)
	require.EqualValues(t, 1, coupon.UsesCount)
}

func TestCreateOrderPixQrFailureDoesNotFailOrder(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, 0)
	gw := &fakeGateway{
		getPixFn: func(string) (*asaas.PixQrCode, error) {
			return nil, errors.New("timeout")
		},
	}
	svc := NewOrderService(db, testConfig())
	result, err := svc.CreateOrder(context.Background(), gw, user.ID, CreateOrderInput{
		Quantity:      1,
		PaymentMethod: models.MethodPix,
	})
	require.NoError(t, err)
	require.Nil(t, result.Pix)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
