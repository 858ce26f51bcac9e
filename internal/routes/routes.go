// Package routes classifies console paths. /login is the only public page.
package routes

import (
	"path"
	"strings"
)

const (
	Login   = "/login"
	Landing = "/dashboard"
	Events  = "/ws"

	legacyPrefix = "/protected"
)

type Class int

const (
	Protected Class = iota
	Public
	Static
	API
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case Static:
		return "static"
	case API:
		return "api"
	default:
		return "protected"
	}
}

var staticPrefixes = []string{"/_next/", "/static/", "/assets/", "/images/", "/fonts/"}

// assetExts are the file types served from the site root, e.g. /logo.svg.
// A dotted path anywhere else is a console page.
var assetExts = map[string]struct{}{
	".css": {}, ".js": {}, ".map": {}, ".json": {}, ".txt": {}, ".webmanifest": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".ico": {}, ".webp": {},
	".woff": {}, ".woff2": {}, ".ttf": {},
}

var staticFiles = map[string]struct{}{
	"/favicon.ico": {},
	"/robots.txt":  {},
	"/health":      {},
	"/metrics":     {},
	Events:         {},
}

func Classify(p string) Class {
	p = normalize(p)

	if p == "/api" || strings.HasPrefix(p, "/api/") {
		return API
	}
	if _, ok := staticFiles[p]; ok {
		return Static
	}
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(p, prefix) {
			return Static
		}
	}
	if isRootAsset(p) {
		return Static
	}
	if IsPublic(p) {
		return Public
	}

	return Protected
}

func isRootAsset(p string) bool {
	if strings.Count(p, "/") != 1 {
		return false
	}
	_, ok := assetExts[strings.ToLower(path.Ext(p))]
	return ok
}

func IsPublic(p string) bool {
	return normalize(p) == Login
}

// StripLegacyPrefix maps /protected/x to /x. ok is false when p does not
// carry the prefix.
func StripLegacyPrefix(p string) (string, bool) {
	if p != legacyPrefix && !strings.HasPrefix(p, legacyPrefix+"/") {
		return p, false
	}

	stripped := strings.TrimPrefix(p, legacyPrefix)
	if stripped == "" {
		stripped = "/"
	}

	return stripped, true
}

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
