// Package device describes the host the gate runs on.
package device

import "runtime"

// Info is the device metadata sent in the gate payload.
type Info struct {
	OSVersion string
	Model     string
	BundleID  string
}

// Detect fills OSVersion and Model from the kernel unless overridden.
func Detect(bundleID, osVersion, model string) Info {
	info := Info{OSVersion: osVersion, Model: model, BundleID: bundleID}
	if info.OSVersion == "" || info.Model == "" {
		release, machine := uname()
		if info.OSVersion == "" {
			info.OSVersion = release
		}
		if info.Model == "" {
			info.Model = machine
		}
	}
	if info.Model == "" {
		info.Model = runtime.GOARCH
	}
	return info
}
