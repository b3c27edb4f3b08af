package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// VoiceClient is the provider-agnostic surface the dialer needs.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Every request must carry an explicit timeout; webhook processing must
//   never block on a slow provider API.
type VoiceClient interface {
	// Originate creates an outbound call leg. The provider posts status
	// callbacks for the new leg to req.StatusCallbackURL.
	Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error)

	// Hangup force-completes a live leg (stuck or abandoned sessions).
	Hangup(ctx context.Context, callSid string) error
}

// OriginateRequest describes one outbound leg to create.
type OriginateRequest struct {
	From string
	To   string

	// AnswerURL is fetched by the provider when the callee answers.
	AnswerURL string

	// StatusCallbackURL receives leg status events; the dialer appends the
	// lead/session correlation ids to its query string.
	StatusCallbackURL string

	// Record asks the provider to record the leg; the result is delivered
	// to RecordingCallbackURL.
	Record               bool
	RecordingCallbackURL string

	// TimeoutSecs bounds ringing before the leg is reported no-answer.
	TimeoutSecs int
}

type OriginateResult struct {
	CallSid string
	Status  CallStatus
}

// TwilioClient implements VoiceClient over the vendor REST API.
type TwilioClient struct {
	rest *twilio.RestClient
}

// NewTwilioClient builds the vendor client with a request timeout applied to
// every REST call.
func NewTwilioClient(accountSID, authToken string, requestTimeout time.Duration) (*TwilioClient, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("telephony: twilio credentials are required")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	if requestTimeout > 0 {
		rest.Client.SetTimeout(requestTimeout)
	}
	return &TwilioClient{rest: rest}, nil
}

func (c *TwilioClient) Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error) {
	if err := ctx.Err(); err != nil {
		return OriginateResult{}, err
	}
	if req.From == "" || req.To == "" {
		return OriginateResult{}, errors.New("telephony: from and to are required")
	}
	if req.AnswerURL == "" {
		return OriginateResult{}, errors.New("telephony: answer url is required")
	}
	if _, err := url.Parse(req.StatusCallbackURL); req.StatusCallbackURL != "" && err != nil {
		return OriginateResult{}, fmt.Errorf("telephony: bad status callback url: %w", err)
	}

	params := &openapi.CreateCallParams{}
	params.SetFrom(req.From)
	params.SetTo(req.To)
	params.SetUrl(req.AnswerURL)
	if req.StatusCallbackURL != "" {
		params.SetStatusCallback(req.StatusCallbackURL)
		params.SetStatusCallbackMethod("POST")
		params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	}
	if req.Record {
		params.SetRecord(true)
		if req.RecordingCallbackURL != "" {
			params.SetRecordingStatusCallback(req.RecordingCallbackURL)
		}
	}
	if req.TimeoutSecs > 0 {
		params.SetTimeout(req.TimeoutSecs)
	}

	resp, err := c.rest.Api.CreateCall(params)
	if err != nil {
		return OriginateResult{}, fmt.Errorf("telephony: create call: %w", err)
	}

	out := OriginateResult{}
	if resp.Sid != nil {
		out.CallSid = *resp.Sid
	}
	if resp.Status != nil {
		out.Status = CallStatus(*resp.Status)
	}
	if out.CallSid == "" {
		return OriginateResult{}, errors.New("telephony: provider returned no call sid")
	}
	return out, nil
}

func (c *TwilioClient) Hangup(ctx context.Context, callSid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if callSid == "" {
		return errors.New("telephony: call sid is required")
	}
	params := &openapi.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := c.rest.Api.UpdateCall(callSid, params); err != nil {
		return fmt.Errorf("telephony: hangup %s: %w", callSid, err)
	}
	return nil
}
