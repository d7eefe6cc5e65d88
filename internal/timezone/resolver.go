// Package timezone resolves user timezones with a silent fallback to a
// default zone, and optionally auto-detects a zone from the server's
// public IP.
package timezone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultDetectURL is the ip-api.com endpoint used for IP-based
// timezone detection when no custom URL is configured.
const DefaultDetectURL = "http://ip-api.com/json/"

// Resolver turns stored IANA names into *time.Location, falling back to
// a configured default on empty or unknown input.
type Resolver struct {
	def       *time.Location
	defName   string
	detectURL string
	client    *http.Client
	log       *zap.Logger
}

// New builds a Resolver. defaultTZ must be a valid IANA name; UTC is
// used if it is not, so a misconfigured default cannot take the bot down.
func New(defaultTZ, detectURL string, log *zap.Logger) *Resolver {
	def, err := time.LoadLocation(defaultTZ)
	if err != nil {
		log.Warn("invalid default timezone, using UTC", zap.String("tz", defaultTZ), zap.Error(err))
		def = time.UTC
		defaultTZ = "UTC"
	}
	if detectURL == "" {
		detectURL = DefaultDetectURL
	}
	return &Resolver{
		def:       def,
		defName:   defaultTZ,
		detectURL: detectURL,
		client:    &http.Client{Timeout: 3 * time.Second},
		log:       log,
	}
}

// Resolve loads an IANA zone, falling back to the default zone on empty
// or unknown input. The fallback is deliberately silent toward the
// user; it is the single place this policy lives.
func (r *Resolver) Resolve(iana string) *time.Location {
	if iana == "" {
		return r.def
	}
	loc, err := time.LoadLocation(iana)
	if err != nil {
		r.log.Debug("unknown timezone, using default", zap.String("tz", iana))
		return r.def
	}
	return loc
}

// DefaultName returns the IANA name of the fallback zone.
func (r *Resolver) DefaultName() string { return r.defName }

// Validate reports whether iana is a loadable IANA zone name.
func (r *Resolver) Validate(iana string) bool {
	if iana == "" {
		return false
	}
	_, err := time.LoadLocation(iana)
	return err == nil
}

// CurrentTime formats the current wall clock in the given zone as HH:MM.
func (r *Resolver) CurrentTime(iana string) string {
	return time.Now().In(r.Resolve(iana)).Format("15:04")
}

// OffsetLabel returns a "UTC+3" style label for the zone's current offset.
func (r *Resolver) OffsetLabel(iana string) string {
	_, offset := time.Now().In(r.Resolve(iana)).Zone()
	hours := offset / 3600
	if hours >= 0 {
		return fmt.Sprintf("UTC+%d", hours)
	}
	return fmt.Sprintf("UTC%d", hours)
}

// DetectByIP asks the configured geo endpoint for the timezone of the
// server's public IP. Any failure falls back to the default zone name.
func (r *Resolver) DetectByIP(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.detectURL, nil)
	if err != nil {
		return r.defName
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Warn("timezone detection request failed", zap.Error(err))
		return r.defName
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn("timezone detection bad status", zap.Int("status", resp.StatusCode))
		return r.defName
	}

	var payload struct {
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		r.log.Warn("timezone detection decode failed", zap.Error(err))
		return r.defName
	}
	if !r.Validate(payload.Timezone) {
		return r.defName
	}
	return payload.Timezone
}
