package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"creditshop/config"
	"creditshop/internal/models"
	"creditshop/pkg/asaas"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Per-test in-memory database to avoid cross-test interference.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Transaction{}, &models.Coupon{}))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{MinCharge: 0.01},
	}
}

func createUser(t *testing.T, db *gorm.DB, credits int64) *models.User {
	t.Helper()
	u := &models.User{
		FullName: "Maria Silva",
		CPF:      "123.456.789-00",
		Phone:    "(11) 98888-7777",
		Email:    fmt.Sprintf("%s@example.com", t.Name()),
		Credits:  credits,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createCoupon(t *testing.T, db *gorm.DB, c models.Coupon) *models.Coupon {
	t.Helper()
	c.Code = models.NormalizeCouponCode(c.Code)
	c.IsActive = true
	require.NoError(t, db.Create(&c).Error)
	return &c
}

// fakeGateway implements Gateway with programmable responses and call counts.
type fakeGateway struct {
	createCustomerFn func(profile asaas.CustomerProfile) (string, error)
	createPaymentFn  func(req asaas.PaymentRequest) (*asaas.Payment, error)
	getPaymentFn     func(id string) (*asaas.Payment, error)
	getPixFn         func(id string) (*asaas.PixQrCode, error)

	customerCalls int
	paymentCalls  int
	getCalls      int
}

func (f *fakeGateway) Env() asaas.Env { return asaas.EnvSandbox }

func (f *fakeGateway) CreateCustomer(_ context.Context, profile asaas.CustomerProfile) (string, error) {
	f.customerCalls++
	if f.createCustomerFn != nil {
		return f.createCustomerFn(profile)
	}
	return "cus_001", nil
}

func (f *fakeGateway) CreatePayment(_ context.Context, req asaas.PaymentRequest) (*asaas.Payment, error) {
	f.paymentCalls++
	if f.createPaymentFn != nil {
		return f.createPaymentFn(req)
	}
	return &asaas.Payment{
		ID:          "pay_001",
		Status:      "PENDING",
		Value:       req.Value,
		BillingType: req.BillingType,
		DueDate:     req.DueDate,
		InvoiceURL:  "https://sandbox.asaas.com/i/pay_001",
	}, nil
}

func (f *fakeGateway) GetPayment(_ context.Context, id string) (*asaas.Payment, error) {
	f.getCalls++
	if f.getPaymentFn != nil {
		return f.getPaymentFn(id)
	}
	return &asaas.Payment{ID: id, Status: "PENDING"}, nil
}

func (f *fakeGateway) GetPixQrCode(_ context.Context, id string) (*asaas.PixQrCode, error) {
	if f.getPixFn != nil {
		return f.getPixFn(id)
	}
	return &asaas.PixQrCode{
		EncodedImage:   "aGVsbG8=",
		Payload:        "00020126pixcopypaste",
		ExpirationDate: time.Now().Add(24 * time.Hour).Format("2006-01-02 15:04:05"),
	}, nil
}
