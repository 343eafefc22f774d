// Package server implements the broadcast core of the framechat service.
//
// A Server accepts stream connections (raw TCP, or WebSocket through the
// gateway), assigns each a sequential ClientID and runs a Client handler
// for it. Handlers exchange messages only through the Hub: every inbound
// frame is published once, and every other handler writes it to its own
// client as "[Client {id}]: {text}". The files are split by concern:
// configuration, hub, client handler, listener, gateway and rate limiting.
package server
