/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Registry-level failures, surfaced to the acting connection only.
var (
	errRoomNotFound   = errors.New("room not found")
	errUnknownVariant = errors.New("unknown game variant")
	errNotInRoom      = errors.New("connection is not part of this room")
	errNameTaken      = errors.New("display name already connected in this room")
)

// Rejection reasons shared by several variants. Games return these inside
// a Result rather than as errors; state is never mutated on rejection.
const (
	reasonWrongPhase    = "action not valid in the current phase"
	reasonNotYourTurn   = "not your turn"
	reasonNotAuthorized = "you may not perform this action"
	reasonInvalidTarget = "invalid target"
	reasonUnknownAction = "unknown action type"
	reasonGameOver      = "the game is over"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
