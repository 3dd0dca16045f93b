package inquiry

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/inquiry/httputil"
	"github.com/dalemusser/inquiry/logging"
	"github.com/dalemusser/inquiry/metrics"
	"github.com/dalemusser/inquiry/pantry/geo/ip"
	"github.com/dalemusser/inquiry/pantry/throttle"
	"go.uber.org/zap"
)

// OperatorFailedMessage is the error text of the 500 returned when the
// operator notification cannot be sent.
const OperatorFailedMessage = "Failed to send inquiry"

// CountryLookup resolves an IP to an ISO country code. *ip.DB implements it.
type CountryLookup interface {
	Country(ip string) (string, error)
}

// Notifier delivers an admitted inquiry. *Dispatcher implements it.
type Notifier interface {
	Dispatch(ctx context.Context, in Inquiry, meta RequestMeta) (DispatchResult, error)
}

// Options configures a Handler.
type Options struct {
	Filter     *Filter
	Dispatcher Notifier

	// Throttle is consulted after the filter accepts. Nil disables it.
	Throttle       throttle.Store
	ThrottleWindow time.Duration

	// Geo, when set, fills RequestMeta.Country for public client IPs.
	Geo CountryLookup

	Logger *zap.Logger
}

// Handler is the inquiry endpoint: POST runs admission, normalization and
// dispatch; OPTIONS answers 204; anything else is 405.
type Handler struct {
	filter     *Filter
	dispatcher Notifier
	throttle   throttle.Store
	window     time.Duration
	geo        CountryLookup
	logger     *zap.Logger
}

func NewHandler(opts Options) (*Handler, error) {
	if opts.Filter == nil {
		return nil, errors.New("inquiry: handler needs a filter")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("inquiry: handler needs a dispatcher")
	}
	st := opts.Throttle
	if st == nil || opts.ThrottleWindow <= 0 {
		st = throttle.Nop{}
	}
	return &Handler{
		filter:     opts.Filter,
		dispatcher: opts.Dispatcher,
		throttle:   st,
		window:     opts.ThrottleWindow,
		geo:        opts.Geo,
		logger:     logging.Named(opts.Logger, "inquiry"),
	}, nil
}

// acceptedResponse is the body of a real success.
type acceptedResponse struct {
	Success       bool    `json:"success"`
	AdminSent     bool    `json:"adminSent"`
	AutoReplySent bool    `json:"autoReplySent"`
	AutoError     *string `json:"autoError"`
}

// deceptiveResponse is returned for every rejected submission. A caller
// cannot tell it from a success whose acknowledgment failed to send.
type deceptiveResponse struct {
	Success       bool `json:"success"`
	AutoReplySent bool `json:"autoReplySent"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, x-form-token")
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		httputil.WriteFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	sub := h.decode(r)
	meta := h.requestMeta(r)

	verdict := h.filter.Evaluate(sub, meta)
	if verdict.Accepted {
		verdict = h.checkThrottle(r.Context(), meta)
	}
	metrics.ObserveAdmission(verdict.Accepted, string(verdict.Reason))

	if !verdict.Accepted {
		h.logger.Info("inquiry rejected",
			zap.String("reason", string(verdict.Reason)),
			zap.String("client_ip", meta.ClientIP),
			zap.String("country", meta.Country),
			zap.String("origin", meta.Origin),
		)
		httputil.WriteJSON(w, http.StatusOK, deceptiveResponse{Success: true})
		return
	}

	in, err := Normalize(sub)
	if err != nil {
		// the filter's required-email signal already covers this
		h.logger.Warn("normalization failed after admission", zap.Error(err))
		httputil.WriteJSON(w, http.StatusOK, deceptiveResponse{Success: true})
		return
	}

	res, err := h.dispatcher.Dispatch(r.Context(), in, meta)
	if err != nil {
		h.logger.Error("inquiry dispatch failed", zap.Error(err), zap.String("client_ip", meta.ClientIP))
		httputil.WriteFailure(w, http.StatusInternalServerError, OperatorFailedMessage)
		return
	}

	h.logger.Info("inquiry accepted",
		zap.String("client_ip", meta.ClientIP),
		zap.String("bundle", in.AssetBundle),
		zap.Bool("ack_sent", res.AcknowledgmentSent),
	)

	resp := acceptedResponse{
		Success:       true,
		AdminSent:     res.OperatorNotified,
		AutoReplySent: res.AcknowledgmentSent,
	}
	if res.AcknowledgmentError != "" {
		msg := res.AcknowledgmentError
		resp.AutoError = &msg
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// decode reads a JSON or form body. Anything unreadable, including an
// oversized body, becomes an empty submission, which the filter then
// rejects for its missing email.
func (h *Handler) decode(r *http.Request) Submission {
	var raw RawSubmission
	if err := httputil.DecodeBody(r, &raw); err != nil {
		h.logger.Debug("unreadable inquiry body",
			zap.Error(err),
			zap.String("content_type", r.Header.Get("Content-Type")),
		)
		return Submission{}
	}
	return raw.Submission()
}

func (h *Handler) requestMeta(r *http.Request) RequestMeta {
	meta := MetaFromRequest(r)
	if h.geo == nil || meta.ClientIP == "" || ip.IsPrivateIP(meta.ClientIP) {
		return meta
	}
	country, err := h.geo.Country(meta.ClientIP)
	if err != nil {
		h.logger.Debug("country lookup failed", zap.String("client_ip", meta.ClientIP), zap.Error(err))
		return meta
	}
	meta.Country = strings.ToUpper(country)
	return meta
}

// checkThrottle fails open: a store error admits the request.
func (h *Handler) checkThrottle(ctx context.Context, meta RequestMeta) Verdict {
	if meta.ClientIP == "" {
		return accept()
	}
	ok, err := h.throttle.Allow(ctx, meta.ClientIP, h.window)
	if err != nil {
		h.logger.Warn("throttle store error; admitting", zap.Error(err))
		return accept()
	}
	if !ok {
		return reject(ReasonThrottled)
	}
	return accept()
}
