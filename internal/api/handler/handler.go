package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/audit"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/store"
	"github.com/cuongbtq/onprem-bridge/internal/metrics"
	"github.com/cuongbtq/onprem-bridge/internal/signing"
	"github.com/cuongbtq/onprem-bridge/internal/tools"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// CallerKey is the gin context key holding the authenticated tools.Caller
const CallerKey = "bridge.caller"

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger          *slog.Logger
	Store           *store.Store
	Tools           *tools.Service
	Signer          *signing.Signer
	Auditor         *audit.Auditor
	Metrics         *metrics.Metrics
	ReadinessChecks map[string]ReadinessCheck
	// Now defaults to time.Now
	Now func() time.Time
}

func callerFrom(c *gin.Context) tools.Caller {
	if v, ok := c.Get(CallerKey); ok {
		if caller, ok := v.(tools.Caller); ok {
			return caller
		}
	}
	return tools.Caller{}
}

// bindStrictJSON decodes the request body into obj, rejecting unknown fields
// and trailing data, then runs gin's struct validation.
func bindStrictJSON(c *gin.Context, obj any) error {
	if c.Request == nil || c.Request.Body == nil {
		return errors.New("missing request body")
	}

	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(obj); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after request body")
	}

	if binding.Validator == nil {
		return nil
	}
	return binding.Validator.ValidateStruct(obj)
}
