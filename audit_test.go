package goAccounts_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/store/memory"
)

func auditConfig() goAccounts.Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	return cfg
}

func drain(sink *goAccounts.ChannelSink) []goAccounts.AuditEvent {
	var out []goAccounts.AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestAuditEventsForAccountLifecycle(t *testing.T) {
	sink := goAccounts.NewChannelSink(64)
	engine, err := goAccounts.New().
		WithConfig(auditConfig()).
		WithStore(memory.New()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := context.Background()

	res, err := engine.CreateAccount(ctx, goAccounts.CreateAccountFields{Username: "alice", Email: "alice@example.com", Password: "pw"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _ = engine.CreateAccount(ctx, goAccounts.CreateAccountFields{Email: "alice@example.com"}, nil)
	_, _ = engine.LoginWithPassword(ctx, "alice", "wrong")
	_, _ = engine.LoginWithPassword(ctx, "alice", "pw")
	_, _ = engine.AddEmail(ctx, res.AccountID, "alice2@example.com", false)
	_ = engine.ChangePassword(ctx, &goAccounts.Account{ID: res.AccountID}, "pw", "pw2")

	engine.Close()
	events := drain(sink)

	wantTypes := []string{
		"account_created",
		"account_creation_duplicate",
		"login_failure",
		"login_success",
		"email_added",
		"password_change_success",
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantTypes), len(events), events)
	}
	for i, want := range wantTypes {
		if events[i].EventType != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, events[i].EventType)
		}
	}

	created := events[0]
	if !created.Success || created.AccountID != res.AccountID || created.Metadata["has_password"] != "true" {
		t.Fatalf("unexpected creation event %+v", created)
	}
	dup := events[1]
	if dup.Success || dup.Error != "duplicate" || dup.Metadata["field"] != "email" {
		t.Fatalf("unexpected duplicate event %+v", dup)
	}
	failed := events[2]
	if failed.Error != "invalid_credentials" || failed.Metadata["reason"] != "incorrect_password" || failed.AccountID != res.AccountID {
		t.Fatalf("unexpected login failure event %+v", failed)
	}
	for _, ev := range events {
		for k, v := range ev.Metadata {
			if v == "pw" || v == "wrong" {
				t.Fatalf("metadata %s leaked a password", k)
			}
		}
	}
}

func TestAuditJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	engine, err := goAccounts.New().
		WithConfig(auditConfig()).
		WithStore(memory.New()).
		WithAuditSink(goAccounts.NewJSONWriterSink(&buf)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, _ = engine.CreateAccount(context.Background(), goAccounts.CreateAccountFields{}, nil)
	engine.Close()

	scanner := bufio.NewScanner(&buf)
	if !scanner.Scan() {
		t.Fatal("expected one JSON line")
	}
	var ev map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev["event_type"] != "account_creation_failure" || ev["error"] != "invalid_input" || ev["success"] != false {
		t.Fatalf("unexpected event %v", ev)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := goAccounts.NewChannelSink(8)
	engine, err := goAccounts.New().
		WithConfig(testConfig()).
		WithStore(memory.New()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	mustCreate(t, engine, goAccounts.CreateAccountFields{Username: "alice"})
	engine.Close()

	if events := drain(sink); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
	if engine.AuditDropped() != 0 {
		t.Fatalf("unexpected drops %d", engine.AuditDropped())
	}
}

func TestAuditRecordsRequestContext(t *testing.T) {
	sink := goAccounts.NewChannelSink(8)
	engine, err := goAccounts.New().
		WithConfig(auditConfig()).
		WithStore(memory.New()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := goAccounts.WithClientIP(context.Background(), "203.0.113.7")
	ctx = goAccounts.WithUserAgent(ctx, "curl/8.0")
	mustCreate(t, engine, goAccounts.CreateAccountFields{Username: "alice"})
	_, _ = engine.LoginWithPassword(ctx, "alice", "pw")
	engine.Close()

	events := drain(sink)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if _, ok := events[0].Metadata["client_ip"]; ok {
		t.Fatal("client_ip recorded without context value")
	}
	login := events[1]
	if login.Metadata["client_ip"] != "203.0.113.7" || login.Metadata["user_agent"] != "curl/8.0" {
		t.Fatalf("unexpected metadata %+v", login.Metadata)
	}
}
