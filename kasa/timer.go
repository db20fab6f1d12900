// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package kasa

import (
	"context"
	"time"
)

// countdownNamespace holds a plug's one-shot countdown timer rules.
const countdownNamespace = "count_down"

// TimerRule is one countdown rule: after Delay seconds, switch the relay
// to Act. ID and Remain are assigned by the device and ignored on add.
type TimerRule struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Enable int    `json:"enable"`
	Delay  int64  `json:"delay"`
	Act    int    `json:"act"`
	Remain int64  `json:"remain,omitempty"`
}

// NewTimerRule builds an enabled rule switching the relay on or off after
// delay, rounded down to whole seconds (minimum 1s).
func NewTimerRule(name string, delay time.Duration, turnOn bool) TimerRule {
	secs := int64(delay / time.Second)
	if secs < 1 {
		secs = 1
	}
	act := 0
	if turnOn {
		act = 1
	}
	return TimerRule{Name: name, Enable: 1, Delay: secs, Act: act}
}

// Enabled reports whether the rule is armed.
func (r TimerRule) Enabled() bool {
	return r.Enable == 1
}

// timerRuleListWire carries the get_rules reply.
type timerRuleListWire struct {
	RuleList []TimerRule `json:"rule_list"`
	ErrCode  int         `json:"err_code"`
}

// TimerRules returns the plug's countdown rules, served from the response
// cache when fresh.
func (p *Plug) TimerRules(ctx context.Context) ([]TimerRule, error) {
	result, err := p.transport.Execute(ctx, countdownNamespace, "get_rules", nil, PolicyCached)
	if err != nil {
		return nil, err
	}
	if err := commandError(result); err != nil {
		return nil, err
	}
	var wire timerRuleListWire
	if err := decodeResult(result, &wire); err != nil {
		return nil, err
	}
	return wire.RuleList, nil
}

// AddTimerRule arms a countdown rule and returns the device-assigned rule
// id. Mutating, so the countdown namespace is invalidated first.
func (p *Plug) AddTimerRule(ctx context.Context, rule TimerRule) (string, error) {
	result, err := p.transport.Execute(ctx, countdownNamespace, "add_rule", map[string]any{
		"name":   rule.Name,
		"enable": rule.Enable,
		"delay":  rule.Delay,
		"act":    rule.Act,
	}, PolicyInvalidate)
	if err != nil {
		return "", err
	}
	if err := commandError(result); err != nil {
		return "", err
	}
	var reply struct {
		ID string `json:"id"`
	}
	if err := decodeResult(result, &reply); err != nil {
		return "", err
	}
	return reply.ID, nil
}

// EditTimerRule rewrites the rule with the given id. Mutating, so the
// countdown namespace is invalidated first.
func (p *Plug) EditTimerRule(ctx context.Context, id string, rule TimerRule) error {
	result, err := p.transport.Execute(ctx, countdownNamespace, "edit_rule", map[string]any{
		"id":     id,
		"name":   rule.Name,
		"enable": rule.Enable,
		"delay":  rule.Delay,
		"act":    rule.Act,
	}, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}

// DeleteTimerRule disarms the rule with the given id. Mutating, so the
// countdown namespace is invalidated first.
func (p *Plug) DeleteTimerRule(ctx context.Context, id string) error {
	result, err := p.transport.Execute(ctx, countdownNamespace, "delete_rule",
		map[string]any{"id": id}, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}

// DeleteAllTimerRules disarms every countdown rule. Mutating, so the
// countdown namespace is invalidated first.
func (p *Plug) DeleteAllTimerRules(ctx context.Context) error {
	result, err := p.transport.Execute(ctx, countdownNamespace, "delete_all_rules",
		nil, PolicyInvalidate)
	if err != nil {
		return err
	}
	return commandError(result)
}
