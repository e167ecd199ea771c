package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/halden/vaultd/internal/noteservice"
	"github.com/halden/vaultd/internal/storage"
	"github.com/halden/vaultd/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	eng, store, _ := testutil.Engine(t)
	if err := eng.IndexAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	svc := noteservice.NewService(store, eng)
	return New(store, svc), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so tool
	// handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "quick_switch":
		result, err = srv.quickSwitch(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "list_tags":
		result, err = srv.listTags(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "rename_note":
		result, err = srv.renameNote(ctx, req)
	case "upload_asset":
		result, err = srv.uploadAsset(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "test.md",
		"content": "# Test\nHello",
	})
	text := resultText(r)
	if text != "created: test.md" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{
		"path": "test.md",
	})
	text = resultText(r)
	if text != "# Test\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateDuplicateNote(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{"path": "dup.md", "content": "x"})

	r := callTool(t, srv, "create_note", map[string]interface{}{"path": "dup.md", "content": "y"})
	if !r.IsError {
		t.Error("expected error for duplicate create")
	}
}

func TestListNotes(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("a.md", []byte("a"))
	_ = store.Write("b.md", []byte("b"))

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "a.md") || !strings.Contains(text, "b.md") {
		t.Errorf("list = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "find.md",
		"content": "uniquetoken in here #special",
	})

	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "uniquetoken"})
	if !strings.Contains(resultText(r), "find.md") {
		t.Errorf("search = %q", resultText(r))
	}

	r = callTool(t, srv, "search_notes", map[string]interface{}{"query": "tag:special"})
	if !strings.Contains(resultText(r), "find.md") {
		t.Errorf("tag search = %q", resultText(r))
	}
}

func TestQuickSwitch(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{"path": "Project Plan.md", "content": "x"})

	r := callTool(t, srv, "quick_switch", map[string]interface{}{"query": "plan"})
	if !strings.Contains(resultText(r), "Project Plan.md") {
		t.Errorf("quick_switch = %q", resultText(r))
	}
}

func TestListTags(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{"path": "a.md", "content": "#alpha #beta"})
	_ = callTool(t, srv, "create_note", map[string]interface{}{"path": "b.md", "content": "#alpha"})

	r := callTool(t, srv, "list_tags", map[string]interface{}{})
	text := resultText(r)
	if !strings.HasPrefix(text, "#alpha (2)") {
		t.Errorf("list_tags = %q", text)
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "a.md",
		"content": "links to [[b]]",
	})
	_ = callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "b.md",
		"content": "target",
	})

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "b.md"})
	text := resultText(r)
	if text != "a.md" {
		t.Errorf("backlinks = %q, want a.md", text)
	}
}

func TestGetBacklinksNone(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "lonely.md"})
	if resultText(r) != "no backlinks found" {
		t.Errorf("backlinks = %q", resultText(r))
	}
}

func TestRenameNote(t *testing.T) {
	srv, store := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{"path": "a.md", "content": "see [[b]]"})
	_ = callTool(t, srv, "create_note", map[string]interface{}{"path": "b.md", "content": "target"})

	r := callTool(t, srv, "rename_note", map[string]interface{}{"source": "b.md", "target": "c.md"})
	text := resultText(r)
	if !strings.Contains(text, `"ok": true`) {
		t.Fatalf("rename = %q", text)
	}

	data, err := store.Read("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "see [[c]]" {
		t.Errorf("a.md = %q", data)
	}
}

func TestRenameNoteConflict(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{"path": "a.md", "content": "x"})
	_ = callTool(t, srv, "create_note", map[string]interface{}{"path": "b.md", "content": "y"})

	r := callTool(t, srv, "rename_note", map[string]interface{}{"source": "a.md", "target": "b.md"})
	if !r.IsError {
		t.Error("expected error for conflicting rename")
	}
}

func pngDataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func TestUploadAssetDataURI(t *testing.T) {
	srv, store := testServer(t)
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

	r := callTool(t, srv, "upload_asset", map[string]interface{}{
		"url":      pngDataURI(png),
		"filename": "pic.png",
	})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, "/attachments/pic.png") {
		t.Errorf("result = %q, want saved path", text)
	}
	saved, err := store.Read("attachments/pic.png")
	if err != nil || !bytes.Equal(saved, png) {
		t.Errorf("stored bytes = %v, %v", saved, err)
	}

	// A second upload with the same name must not overwrite the first.
	r = callTool(t, srv, "upload_asset", map[string]interface{}{
		"url":      pngDataURI(png),
		"filename": "pic.png",
	})
	if !r.IsError {
		t.Error("expected error for duplicate filename")
	}
}

func TestUploadAssetGeneratesFilename(t *testing.T) {
	srv, _ := testServer(t)
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

	r := callTool(t, srv, "upload_asset", map[string]interface{}{"url": pngDataURI(png)})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, ".png") {
		t.Errorf("result = %q, want generated .png name", text)
	}
}

func TestUploadAssetRejectsMismatchedContent(t *testing.T) {
	srv, _ := testServer(t)
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

	r := callTool(t, srv, "upload_asset", map[string]interface{}{
		"url":      pngDataURI(png),
		"filename": "pic.gif",
	})
	if !r.IsError {
		t.Error("expected error for PNG bytes behind a .gif name")
	}
}
