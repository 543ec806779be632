// Package payload assembles the opaque data parameter of the backend request.
package payload

import (
	"encoding/base64"
	"strings"

	"startgate/internal/device"
)

// Input gathers everything the backend needs to know about this install.
// Optional values are left empty when their source was unavailable.
type Input struct {
	AttributionNetworkID string
	InstallID            string
	SessionID            string
	Device               device.Info
	PushToken            string
	AttributionToken     string
}

// Field is one key=value pair of the payload.
type Field struct {
	Key   string
	Value string
}

// Fields returns the payload pairs in wire order.
func (in Input) Fields() []Field {
	return []Field{
		{"appsflyer_id", in.AttributionNetworkID},
		{"app_instance_id", in.InstallID},
		{"uid", in.SessionID},
		{"osVersion", in.Device.OSVersion},
		{"devModel", in.Device.Model},
		{"bundle", in.Device.BundleID},
		{"fcm_token", in.PushToken},
		{"att_token", in.AttributionToken},
	}
}

// Raw is the unencoded key=value&... form.
func (in Input) Raw() string {
	var b strings.Builder
	for i, f := range in.Fields() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// Build returns the base64 payload. It is deterministic and never fails.
func Build(in Input) string {
	return base64.StdEncoding.EncodeToString([]byte(in.Raw()))
}
