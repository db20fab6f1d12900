// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"encoding/json"
)

// Cloud namespaces. Plugs bind under cnCloud; bulbs under the
// smartlife.iot tree.
const (
	cloudNamespace     = "cnCloud"
	bulbCloudNamespace = "smartlife.iot.common.cloud"
)

// CloudInfo is the device's TP-Link cloud binding state, returned by the
// cloud get_info command.
type CloudInfo struct {
	Binded        int    `json:"binded"`
	CldConnection int    `json:"cld_connection"`
	Server        string `json:"server"`
	Username      string `json:"username"`
	FwDlPage      string `json:"fwDlPage"`
	FwNotifyType  int    `json:"fwNotifyType"`
	IllegalType   int    `json:"illegalType"`
	StopConnect   int    `json:"stopConnect"`
	TcspInfo      string `json:"tcspInfo"`
	TcspStatus    int    `json:"tcspStatus"`
	ErrCode       int    `json:"err_code"`
}

// Bound reports whether the device is bound to a TP-Link account.
func (c *CloudInfo) Bound() bool {
	return c.Binded == 1
}

// firmwareListWire carries the get_intl_fw_list reply.
type firmwareListWire struct {
	FwList  []json.RawMessage `json:"fw_list"`
	ErrCode int               `json:"err_code"`
}

// readCloudInfo fetches the binding state on the given cloud namespace,
// served from the response cache when fresh.
func readCloudInfo(ctx context.Context, t *Transport, namespace string) (*CloudInfo, error) {
	result, err := t.Execute(ctx, namespace, "get_info", nil, PolicyCached)
	if err != nil {
		return nil, err
	}
	if err := commandError(result); err != nil {
		return nil, err
	}
	var info CloudInfo
	if err := decodeResult(result, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// cloudBind binds the device to a TP-Link account. Mutating, so the cloud
// namespace is invalidated first.
func cloudBind(ctx context.Context, t *Transport, namespace, username, password string) error {
	result, err := t.Execute(ctx, namespace, "bind",
		map[string]any{"username": username, "password": password}, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}

// cloudUnbind releases the device's account binding. Mutating, so the
// cloud namespace is invalidated first.
func cloudUnbind(ctx context.Context, t *Transport, namespace string) error {
	result, err := t.Execute(ctx, namespace, "unbind", nil, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}

// cloudFirmwareList fetches the firmware entries the cloud offers the
// device, passed through as raw JSON.
func cloudFirmwareList(ctx context.Context, t *Transport, namespace string) ([]json.RawMessage, error) {
	result, err := t.Execute(ctx, namespace, "get_intl_fw_list", nil, PolicyCached)
	if err != nil {
		return nil, err
	}
	if err := commandError(result); err != nil {
		return nil, err
	}
	var wire firmwareListWire
	if err := decodeResult(result, &wire); err != nil {
		return nil, err
	}
	return wire.FwList, nil
}

// cloudSetServerURL repoints the device at another cloud endpoint.
// Mutating, so the cloud namespace is invalidated first.
func cloudSetServerURL(ctx context.Context, t *Transport, namespace, url string) error {
	result, err := t.Execute(ctx, namespace, "set_server_url",
		map[string]any{"server": url}, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}

// CloudInfo returns the plug's cloud binding state.
func (p *Plug) CloudInfo(ctx context.Context) (*CloudInfo, error) {
	return readCloudInfo(ctx, p.transport, cloudNamespace)
}

// CloudBind binds the plug to a TP-Link account.
func (p *Plug) CloudBind(ctx context.Context, username, password string) error {
	return cloudBind(ctx, p.transport, cloudNamespace, username, password)
}

// CloudUnbind releases the plug's account binding.
func (p *Plug) CloudUnbind(ctx context.Context) error {
	return cloudUnbind(ctx, p.transport, cloudNamespace)
}

// CloudFirmwareList returns the firmware entries the cloud offers the
// plug, as raw JSON.
func (p *Plug) CloudFirmwareList(ctx context.Context) ([]json.RawMessage, error) {
	return cloudFirmwareList(ctx, p.transport, cloudNamespace)
}

// SetCloudServerURL repoints the plug at another cloud endpoint.
func (p *Plug) SetCloudServerURL(ctx context.Context, url string) error {
	return cloudSetServerURL(ctx, p.transport, cloudNamespace, url)
}

// CloudInfo returns the bulb's cloud binding state.
func (b *Bulb) CloudInfo(ctx context.Context) (*CloudInfo, error) {
	return readCloudInfo(ctx, b.transport, bulbCloudNamespace)
}

// CloudBind binds the bulb to a TP-Link account.
func (b *Bulb) CloudBind(ctx context.Context, username, password string) error {
	return cloudBind(ctx, b.transport, bulbCloudNamespace, username, password)
}

// CloudUnbind releases the bulb's account binding.
func (b *Bulb) CloudUnbind(ctx context.Context) error {
	return cloudUnbind(ctx, b.transport, bulbCloudNamespace)
}

// SetCloudServerURL repoints the bulb at another cloud endpoint.
func (b *Bulb) SetCloudServerURL(ctx context.Context, url string) error {
	return cloudSetServerURL(ctx, b.transport, bulbCloudNamespace, url)
}
