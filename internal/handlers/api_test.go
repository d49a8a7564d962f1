package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/internal/handlers"
	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/ocr"
	"github.com/zipdrophq/zipdrop-backend/internal/pricing"
	"github.com/zipdrophq/zipdrop-backend/internal/routes"
	"github.com/zipdrophq/zipdrop-backend/internal/services"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

type memObjects struct{ objects map[string][]byte }

func (m *memObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *memObjects) Fetch(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return data, nil
}

func (m *memObjects) SignURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, []byte) (*ocr.Result, error) {
	return &ocr.Result{Text: "Name: Ravi Kumar\n1234 5678 9012", Confidence: 0.9}, nil
}

func newTestApp(t *testing.T) (*fiber.App, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	log := zap.NewNop()
	notifier := services.NewNoopNotifier(log)

	otpSvc := services.NewOTPService(store, notifier, 10*time.Minute, 3, log)
	orderSvc := services.NewOrderService(store, otpSvc, pricing.DefaultRates(), services.NoopPublisher{}, notifier, log)
	locationSvc := services.NewLocationService(store, time.Nanosecond, 120, log)
	documentSvc := services.NewDocumentService(store, &memObjects{objects: map[string][]byte{}}, stubExtractor{}, log)

	app := fiber.New()
	routes.SetupRoutes(app, routes.Deps{
		Customers: handlers.NewCustomerHandler(store),
		Partners:  handlers.NewPartnerHandler(store, locationSvc),
		Orders:    handlers.NewOrderHandler(orderSvc),
		OTP:       handlers.NewOTPHandler(otpSvc),
		Documents: handlers.NewDocumentHandler(documentSvc),
		Health:    handlers.NewHealthHandler("test", nil),
	})
	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &decoded))
	}
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestCustomerRegistration(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/customers", fiber.Map{
		"name":  "Asha Rao",
		"phone": "9876543210",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	customerID := body["customer_id"].(string)
	require.NotEmpty(t, customerID)
	assert.Equal(t, "+919876543210", body["phone"])

	// Duplicate phone is rejected.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/customers", fiber.Map{
		"name":  "Someone Else",
		"phone": "9876543210",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Missing name fails validation.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/customers", fiber.Map{"phone": "9876500001"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/customers/"+customerID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Asha Rao", body["name"])

	resp, _ = doJSON(t, app, http.MethodGet, "/api/customers/CUS-missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func registerCustomer(t *testing.T, app *fiber.App, phone string) string {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/customers", fiber.Map{
		"name": "Asha Rao", "phone": phone,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["customer_id"].(string)
}

func registerPartner(t *testing.T, app *fiber.App, store storage.Store, phone string) string {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/partners", fiber.Map{
		"name":         "Ravi Kumar",
		"phone":        phone,
		"vehicle_no":   "KA 01 AB " + phone[6:],
		"vehicle_type": "bike",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	partnerID := body["partner_id"].(string)

	partner, err := store.GetPartner(partnerID)
	require.NoError(t, err)
	partner.Verified = true
	partner.Available = true
	require.NoError(t, store.UpdatePartner(partner))
	return partnerID
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	app, store := newTestApp(t)
	customerID := registerCustomer(t, app, "9876543210")
	partnerID := registerPartner(t, app, store, "9876500001")

	resp, body := doJSON(t, app, http.MethodPost, "/api/orders", fiber.Map{
		"customer_id":    customerID,
		"items":          []fiber.Map{{"name": "parcel", "weight_kg": 2, "quantity": 1}},
		"pickup_address": "MG Road",
		"pickup_lat":     12.97,
		"pickup_lng":     77.59,
		"drop_address":   "Koramangala",
		"drop_lat":       12.93,
		"drop_lng":       77.61,
		"service_type":   "standard",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := body["order_id"].(string)
	assert.Equal(t, "PENDING", body["status"])
	assert.Greater(t, body["total_amount"].(float64), 0.0)

	// The OTP codes never appear in API responses.
	_, hasCode := body["code"]
	assert.False(t, hasCode)

	resp, body = doJSON(t, app, http.MethodPost, "/api/orders/"+orderID+"/assign", fiber.Map{
		"partner_id": partnerID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CONFIRMED", body["status"])

	// Pickup needs the customer's code; a wrong one is a 400.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/orders/"+orderID+"/verify-pickup", fiber.Map{
		"partner_id": partnerID,
		"code":       "000000",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	pickup, err := store.GetPendingOTP(customerID, models.OTPPurposePickupConfirmation, orderID)
	require.NoError(t, err)
	resp, body = doJSON(t, app, http.MethodPost, "/api/orders/"+orderID+"/verify-pickup", fiber.Map{
		"partner_id": partnerID,
		"code":       pickup.Code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PICKED_UP", body["status"])

	for _, status := range []string{"IN_TRANSIT", "OUT_FOR_DELIVERY"} {
		resp, body = doJSON(t, app, http.MethodPost, "/api/orders/"+orderID+"/status", fiber.Map{
			"status": status,
			"actor":  partnerID,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, status, body["status"])
	}

	delivery, err := store.GetPendingOTP(customerID, models.OTPPurposeDeliveryConfirmation, orderID)
	require.NoError(t, err)
	resp, body = doJSON(t, app, http.MethodPost, "/api/orders/"+orderID+"/verify-delivery", fiber.Map{
		"partner_id": partnerID,
		"code":       delivery.Code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DELIVERED", body["status"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/orders/"+orderID+"/rate", fiber.Map{
		"rating":      5,
		"rating_type": "customer",
		"comment":     "quick",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5.0, body["customer_rating"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/orders/"+orderID+"/timeline", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6.0, body["count"])
}

func TestInvalidTransitionOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	customerID := registerCustomer(t, app, "9876543210")

	resp, body := doJSON(t, app, http.MethodPost, "/api/orders", fiber.Map{
		"customer_id":    customerID,
		"items":          []fiber.Map{{"name": "parcel", "weight_kg": 1}},
		"pickup_address": "A", "pickup_lat": 12.97, "pickup_lng": 77.59,
		"drop_address": "B", "drop_lat": 12.93, "drop_lng": 77.61,
		"service_type": "standard",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := body["order_id"].(string)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/orders/"+orderID+"/status", fiber.Map{
		"status": "DELIVERED",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/api/orders/"+orderID+"/cancel", fiber.Map{
		"reason":       "test run",
		"cancelled_by": customerID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", body["status"])

	// Terminal orders cannot be cancelled again.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/orders/"+orderID+"/cancel", fiber.Map{
		"reason":       "again",
		"cancelled_by": customerID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPartnerLocationAndNearby(t *testing.T) {
	app, store := newTestApp(t)
	partnerID := registerPartner(t, app, store, "9876500001")

	resp, body := doJSON(t, app, http.MethodPost, "/api/partners/"+partnerID+"/location", fiber.Map{
		"lat": 12.975,
		"lng": 77.595,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_valid"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/partners/nearby?lat=12.97&lng=77.59&radius_km=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["count"])

	resp, body = doJSON(t, app, http.MethodGet,
		"/api/partners/optimal?origin_lat=12.97&origin_lng=77.59&dest_lat=12.93&dest_lng=77.61&radius_km=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, body["partner"])

	// Nobody within a tight radius around a different city.
	resp, _ = doJSON(t, app, http.MethodGet,
		"/api/partners/optimal?origin_lat=19.07&origin_lng=72.87&dest_lat=19.10&dest_lng=72.88&radius_km=5", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/partners/nearby?lat=12.97&lng=77.59&radius_km=500", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOTPEndpoints(t *testing.T) {
	app, store := newTestApp(t)
	customerID := registerCustomer(t, app, "9876543210")

	resp, body := doJSON(t, app, http.MethodPost, "/api/otp/issue", fiber.Map{
		"user_id": customerID,
		"purpose": "phone_verification",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_, hasCode := body["code"]
	assert.False(t, hasCode)

	otp, err := store.GetPendingOTP(customerID, models.OTPPurposePhoneVerification, "")
	require.NoError(t, err)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/otp/verify", fiber.Map{
		"user_id": customerID,
		"purpose": "phone_verification",
		"code":    "000000",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/otp/verify", fiber.Map{
		"user_id": customerID,
		"purpose": "phone_verification",
		"code":    otp.Code,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Pickup codes are not issuable through the public endpoint.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/otp/issue", fiber.Map{
		"user_id": customerID,
		"purpose": "pickup_confirmation",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocumentEndpoints(t *testing.T) {
	app, store := newTestApp(t)
	partnerID := registerPartner(t, app, store, "9876500001")

	// base64 of a small payload
	resp, body := doJSON(t, app, http.MethodPost, "/api/documents", fiber.Map{
		"partner_id": partnerID,
		"type":       "aadhaar",
		"data":       "c2Nhbg==",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	documentID := body["document_id"].(string)
	assert.Equal(t, "pending", body["status"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/documents/"+documentID+"/verify", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "verified", body["status"])
	assert.Equal(t, "9012", body["number_last4"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/documents/"+documentID+"/url", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["url"].(string), "https://objects.test/")

	resp, _ = doJSON(t, app, http.MethodPost, "/api/documents", fiber.Map{
		"partner_id": partnerID,
		"type":       "aadhaar",
		"data":       "not base64!!!",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
