// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// cloudState backs a scripted cloud service on either cloud namespace.
type cloudState struct {
	binded   int
	server   string
	username string
}

func newFakeCloudDevice(t *testing.T, namespace string, state *cloudState) *fakeDevice {
	t.Helper()
	return newScriptedDevice(t, script{
		namespace + ".get_info": func(json.RawMessage) any {
			return map[string]any{
				"binded":   state.binded,
				"server":   state.server,
				"username": state.username,
				"err_code": 0,
			}
		},
		namespace + ".bind": func(arg json.RawMessage) any {
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := json.Unmarshal(arg, &req); err != nil || req.Password == "" {
				return map[string]any{"err_code": -1}
			}
			state.binded = 1
			state.username = req.Username
			return map[string]any{"err_code": 0}
		},
		namespace + ".unbind": func(json.RawMessage) any {
			state.binded = 0
			state.username = ""
			return map[string]any{"err_code": 0}
		},
		namespace + ".set_server_url": func(arg json.RawMessage) any {
			var req struct {
				Server string `json:"server"`
			}
			if err := json.Unmarshal(arg, &req); err != nil {
				return map[string]any{"err_code": -1}
			}
			state.server = req.Server
			return map[string]any{"err_code": 0}
		},
		namespace + ".get_intl_fw_list": func(json.RawMessage) any {
			return map[string]any{
				"fw_list":  []map[string]any{{"fwVer": "1.5.6", "fwUrl": "http://example.invalid/fw"}},
				"err_code": 0,
			}
		},
	})
}

func TestPlugCloudBindUnbind(t *testing.T) {
	state := &cloudState{server: "devs.tplinkcloud.com"}
	fd := newFakeCloudDevice(t, "cnCloud", state)
	plug := NewPlugWithConfig(fd.config(), time.Minute)
	ctx := context.Background()

	info, err := plug.CloudInfo(ctx)
	if err != nil {
		t.Fatalf("CloudInfo() error = %v", err)
	}
	if info.Bound() {
		t.Fatal("Bound() = true before bind")
	}

	if err := plug.CloudBind(ctx, "user@example.com", "hunter22"); err != nil {
		t.Fatalf("CloudBind() error = %v", err)
	}

	// Bind invalidates the cloud namespace, so this read must see the new
	// binding rather than the cached one.
	info, err = plug.CloudInfo(ctx)
	if err != nil {
		t.Fatalf("CloudInfo() error = %v", err)
	}
	if !info.Bound() {
		t.Error("Bound() = false after bind")
	}
	if info.Username != "user@example.com" {
		t.Errorf("Username = %q", info.Username)
	}

	if err := plug.CloudUnbind(ctx); err != nil {
		t.Fatalf("CloudUnbind() error = %v", err)
	}
	info, err = plug.CloudInfo(ctx)
	if err != nil {
		t.Fatalf("CloudInfo() error = %v", err)
	}
	if info.Bound() {
		t.Error("Bound() = true after unbind")
	}
}

func TestPlugCloudBindRejected(t *testing.T) {
	state := &cloudState{}
	fd := newFakeCloudDevice(t, "cnCloud", state)
	plug := NewPlugWithConfig(fd.config(), 0)

	if err := plug.CloudBind(context.Background(), "user@example.com", ""); err == nil {
		t.Error("CloudBind() with a rejected credential returned nil error")
	}
}

func TestPlugSetCloudServerURL(t *testing.T) {
	state := &cloudState{server: "devs.tplinkcloud.com"}
	fd := newFakeCloudDevice(t, "cnCloud", state)
	plug := NewPlugWithConfig(fd.config(), time.Minute)
	ctx := context.Background()

	if err := plug.SetCloudServerURL(ctx, "devs.example.net"); err != nil {
		t.Fatalf("SetCloudServerURL() error = %v", err)
	}
	info, err := plug.CloudInfo(ctx)
	if err != nil {
		t.Fatalf("CloudInfo() error = %v", err)
	}
	if info.Server != "devs.example.net" {
		t.Errorf("Server = %q after repointing", info.Server)
	}
}

func TestPlugCloudFirmwareList(t *testing.T) {
	state := &cloudState{}
	fd := newFakeCloudDevice(t, "cnCloud", state)
	plug := NewPlugWithConfig(fd.config(), 0)

	list, err := plug.CloudFirmwareList(context.Background())
	if err != nil {
		t.Fatalf("CloudFirmwareList() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("CloudFirmwareList() = %d entries, want 1", len(list))
	}
	var entry struct {
		FwVer string `json:"fwVer"`
	}
	if err := json.Unmarshal(list[0], &entry); err != nil {
		t.Fatalf("firmware entry unmarshal: %v", err)
	}
	if entry.FwVer != "1.5.6" {
		t.Errorf("fwVer = %q", entry.FwVer)
	}
}

func TestBulbCloudNamespace(t *testing.T) {
	state := &cloudState{server: "devs.tplinkcloud.com"}
	fd := newFakeCloudDevice(t, "smartlife.iot.common.cloud", state)
	bulb := NewBulbWithConfig(fd.config(), 0)
	ctx := context.Background()

	info, err := bulb.CloudInfo(ctx)
	if err != nil {
		t.Fatalf("CloudInfo() error = %v", err)
	}
	if info.Server != "devs.tplinkcloud.com" {
		t.Errorf("Server = %q", info.Server)
	}

	if err := bulb.CloudBind(ctx, "user@example.com", "hunter22"); err != nil {
		t.Fatalf("CloudBind() error = %v", err)
	}
	if err := bulb.CloudUnbind(ctx); err != nil {
		t.Fatalf("CloudUnbind() error = %v", err)
	}
	if err := bulb.SetCloudServerURL(ctx, "devs.example.net"); err != nil {
		t.Fatalf("SetCloudServerURL() error = %v", err)
	}
}
