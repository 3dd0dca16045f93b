package inquiry

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dalemusser/inquiry/logging"
	"github.com/dalemusser/inquiry/metrics"
	"github.com/dalemusser/inquiry/pantry/email"
	"go.uber.org/zap"
)

// AckFailedMessage is reported as autoError when the acknowledgment fails.
// Transport details stay in the log.
const AckFailedMessage = "Auto-reply could not be sent"

// DispatchResult records what the dispatcher managed to send.
type DispatchResult struct {
	OperatorNotified   bool
	AcknowledgmentSent bool
	// AcknowledgmentError is empty unless the acknowledgment failed.
	AcknowledgmentError string
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Sender email.Sender

	// OperatorEmail receives notifications and is the acknowledgment's Reply-To.
	OperatorEmail string
	// OperatorName is the display name used on the acknowledgment's Reply-To.
	OperatorName string

	Brand Branding

	// Timeout bounds each send. Default 15s.
	Timeout time.Duration

	Logger *zap.Logger
	Now    func() time.Time
}

// Dispatcher sends the operator notification and then the acknowledgment.
type Dispatcher struct {
	sender    email.Sender
	templates *email.TemplateStore
	operator  string
	ackReply  string
	brand     Branding
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Sender == nil {
		return nil, errors.New("inquiry: dispatcher needs a sender")
	}
	op, err := mail.ParseAddress(strings.TrimSpace(cfg.OperatorEmail))
	if err != nil {
		return nil, fmt.Errorf("inquiry: operator email %q: %w", cfg.OperatorEmail, err)
	}
	store, err := newTemplateStore()
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	reply := mail.Address{Name: cfg.OperatorName, Address: op.Address}
	return &Dispatcher{
		sender:    cfg.Sender,
		templates: store,
		operator:  op.Address,
		ackReply:  reply.String(),
		brand:     cfg.Brand,
		timeout:   cfg.Timeout,
		logger:    logging.Named(cfg.Logger, "dispatcher"),
		now:       cfg.Now,
	}, nil
}

// Dispatch sends the operator notification and, only if that succeeded,
// the acknowledgment to in.Email. An operator failure is returned as an
// error. An acknowledgment failure is recorded in the result and never
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inquiry, meta RequestMeta) (DispatchResult, error) {
	var res DispatchResult
	data := messageData{
		Inquiry:    in,
		Meta:       meta,
		Brand:      d.brand,
		SiteHost:   d.brand.SiteHost(),
		ReceivedAt: d.now().UTC().Format(time.RFC3339),
	}

	opMsg, err := d.templates.Render(operatorTemplate, data)
	if err != nil {
		return res, fmt.Errorf("render operator message: %w", err)
	}
	opMsg.To = []string{d.operator}
	if addr, perr := mail.ParseAddress(in.Email); perr == nil {
		opMsg.ReplyTo = addr.Address
	} else {
		d.logger.Warn("submitter email is not a valid address; operator mail sent without Reply-To",
			logging.Email("email", in.Email), zap.Error(perr))
	}

	err = d.send(ctx, opMsg)
	metrics.ObserveDispatch("operator", err)
	if err != nil {
		d.logger.Error("operator notification failed", zap.Error(err), zap.String("client_ip", meta.ClientIP))
		return res, fmt.Errorf("send operator notification: %w", err)
	}
	res.OperatorNotified = true

	if err := d.acknowledge(ctx, data); err != nil {
		metrics.ObserveDispatch("acknowledgment", err)
		d.logger.Warn("acknowledgment failed", zap.Error(err), logging.Email("to", in.Email))
		res.AcknowledgmentError = AckFailedMessage
		return res, nil
	}
	metrics.ObserveDispatch("acknowledgment", nil)
	res.AcknowledgmentSent = true
	return res, nil
}

// acknowledge renders and sends the courtesy reply. A panic in the sender
// is turned into an error so it cannot affect the operator outcome.
func (d *Dispatcher) acknowledge(ctx context.Context, data messageData) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("acknowledgment panic: %v", rec)
		}
	}()

	msg, err := d.templates.Render(ackTemplate, data)
	if err != nil {
		return fmt.Errorf("render acknowledgment: %w", err)
	}
	msg.To = []string{data.Inquiry.Email}
	msg.ReplyTo = d.ackReply
	msg.Headers = ackHeaders
	return d.send(ctx, msg)
}

func (d *Dispatcher) send(ctx context.Context, msg email.Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.sender.Send(ctx, msg)
}
