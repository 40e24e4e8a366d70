package services

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// AlertService sends operator SMS notifications when a session needs human
// attention (credential revoked, reconnect churn). Optional: without Twilio
// env configuration every notify call is a no-op.
type AlertService struct {
	client *twilio.RestClient
	from   string
	to     string
}

var (
	alertServiceInstance *AlertService
	alertServiceMu       sync.Mutex
)

// SetAlertService sets the global alert service instance (call from main.go)
func SetAlertService(as *AlertService) {
	alertServiceMu.Lock()
	defer alertServiceMu.Unlock()
	alertServiceInstance = as
}

// GetAlertService returns the global alert service instance
func GetAlertService() *AlertService {
	alertServiceMu.Lock()
	defer alertServiceMu.Unlock()
	return alertServiceInstance
}

// NewAlertService creates an alert service from TWILIO_ACCOUNT_SID,
// TWILIO_AUTH_TOKEN, TWILIO_FROM and ALERT_PHONE. Returns nil (disabled)
// when any of them is missing.
func NewAlertService() *AlertService {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_FROM")
	to := os.Getenv("ALERT_PHONE")

	if accountSid == "" || authToken == "" || from == "" || to == "" {
		log.Println("⚠️  Twilio alerting not configured - operator alerts disabled")
		return nil
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &AlertService{client: client, from: from, to: to}
}

// NotifyLoggedOut tells the operator a session lost its device link and
// needs to be re-paired.
func (a *AlertService) NotifyLoggedOut(sessionID string) {
	a.send(fmt.Sprintf("Session %s was logged out. A fresh pairing is required.", sessionID))
}

// send fires the SMS; failures are logged, never propagated.
func (a *AlertService) send(body string) {
	if a == nil {
		return
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(a.from)
	params.SetTo(a.to)
	params.SetBody(body)

	resp, err := a.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send operator alert: %v", err)
		return
	}
	log.Printf("✅ Operator alert sent! SID: %s", *resp.Sid)
}
