package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// Attachments land under this vault directory, next to the notes that embed
// them. The REST layer serves the same directory at /attachments.
const (
	attachmentDir      = "attachments"
	maxAttachmentBytes = 10 << 20
	maxRedirects       = 5
)

var (
	attachmentExts = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true, ".svg": true, ".pdf": true,
	}

	extByMIME = map[string]string{
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"image/gif":       ".gif",
		"image/webp":      ".webp",
		"image/svg+xml":   ".svg",
		"application/pdf": ".pdf",
	}

	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type attachmentSaved struct {
	SavedPath     string `json:"savedPath"`
	MarkdownImage string `json:"markdownImage"`
}

// uploadAsset fetches an image or PDF from an http(s) URL or a base64 data
// URI and stores it in the vault's attachment directory. The declared
// extension must match the content's magic bytes; existing files are never
// overwritten.
func (s *Server) uploadAsset(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := ""
	if v, nameErr := req.RequireString("filename"); nameErr == nil {
		name = v
	}

	var data []byte
	var extHint string
	if strings.HasPrefix(src, "data:") {
		data, extHint, err = decodeDataURI(src)
	} else {
		data, extHint, err = fetchAttachment(src)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxAttachmentBytes {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxAttachmentBytes)), nil
	}

	if name == "" {
		name = attachmentName(src, extHint)
	}
	name = sanitizeAttachmentName(name)

	ext := strings.ToLower(filepath.Ext(name))
	if !attachmentExts[ext] {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file extension: %s (allowed: png, jpg, jpeg, gif, webp, svg, pdf)", ext)), nil
	}
	if err := checkContentMatchesExt(data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	savePath := path.Join(attachmentDir, name)
	if exists, existsErr := s.store.Exists(savePath); existsErr == nil && exists {
		return mcp.NewToolResultError(fmt.Sprintf("file already exists: %s", savePath)), nil
	}
	if err := s.store.Write(savePath, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save attachment: %v", err)), nil
	}

	servePath := "/" + attachmentDir + "/" + name
	out, _ := json.Marshal(attachmentSaved{
		SavedPath:     servePath,
		MarkdownImage: fmt.Sprintf("![%s](%s)", name, servePath),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI. Only base64
// payloads with a whitelisted MIME type are accepted.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	meta, encoded := rest[:comma], rest[comma+1:]
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Some producers omit padding.
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := extByMIME[mime]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	return data, ext, nil
}

// fetchAttachment downloads from an http(s) URL. Loopback and cloud metadata
// hosts are rejected, on the initial request and on every redirect hop.
func fetchAttachment(rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := rejectInternalHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			return rejectInternalHost(req.URL.Hostname())
		},
	}

	resp, err := client.Get(rawURL) //nolint:noctx
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxAttachmentBytes {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxAttachmentBytes)
	}

	ct := strings.Split(resp.Header.Get("Content-Type"), ";")[0]
	return data, extByMIME[ct], nil
}

// rejectInternalHost blocks loopback addresses and well-known cloud metadata
// endpoints so the tool cannot be used to probe the host it runs on.
func rejectInternalHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // unresolvable hosts fail in the client instead
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// attachmentName derives a filename from the source URL. Data URIs and URLs
// without a usable basename get a generated name with the detected extension.
func attachmentName(src, extHint string) string {
	if !strings.HasPrefix(src, "data:") {
		if parsed, err := url.Parse(src); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	if extHint == "" {
		extHint = ".bin"
	}
	return uuid.New().String() + extHint
}

// sanitizeAttachmentName strips path separators and unsafe characters.
func sanitizeAttachmentName(name string) string {
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." {
		name = uuid.New().String()
	}
	return name
}

// checkContentMatchesExt verifies the payload's magic bytes agree with the
// declared extension. SVG is text, so it is probed for an <svg tag instead.
func checkContentMatchesExt(data []byte, ext string) error {
	if ext == ".svg" {
		head := data
		if len(head) > 1024 {
			head = head[:1024]
		}
		if !bytes.Contains(head, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}

	detected := http.DetectContentType(data)
	wantExt := extByMIME[strings.Split(detected, ";")[0]]
	if ext == ".jpg" || ext == ".jpeg" {
		if wantExt != ".jpg" && wantExt != ".jpeg" {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
		return nil
	}
	if wantExt != ext {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
