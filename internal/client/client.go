// Package client implements the docbridge command line: a thin HTTP client
// for the daemon's JSON API.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docbridge/docbridge/internal/api"
	"github.com/docbridge/docbridge/internal/config"
	"github.com/docbridge/docbridge/internal/retrieval"
)

func defaultAddr() string {
	if addr := strings.TrimSpace(os.Getenv("DOCBRIDGE_ADDR")); addr != "" {
		return addr
	}
	return "http://localhost:8080"
}

// Run executes one CLI invocation and returns the process exit code.
func Run(binaryName string, argv []string) int {
	if binaryName == "" {
		binaryName = filepath.Base(os.Args[0])
	}
	if len(argv) == 0 {
		usage(binaryName)
		return 1
	}

	addr := defaultAddr()
	jsonOut := !isTerminal(os.Stdout.Fd())

	global := flag.NewFlagSet("global", flag.ContinueOnError)
	global.StringVar(&addr, "addr", addr, "daemon base url")
	global.BoolVar(&jsonOut, "json", jsonOut, "json output")
	global.SetOutput(os.Stderr)
	_ = global.Parse(argv)
	args := global.Args()
	if len(args) == 0 {
		usage(binaryName)
		return 1
	}

	c := &httpClient{base: strings.TrimRight(addr, "/"), http: &http.Client{Timeout: 5 * time.Minute}}
	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "health":
		return c.runHealth(jsonOut)
	case "servers":
		return c.runServers(jsonOut)
	case "tools":
		fs := flag.NewFlagSet("tools", flag.ContinueOnError)
		var server string
		fs.StringVar(&server, "server", "", "filter by server name")
		_ = fs.Parse(rest)
		return c.runTools(server, jsonOut)
	case "upload":
		fs := flag.NewFlagSet("upload", flag.ContinueOnError)
		var mongo bool
		fs.BoolVar(&mongo, "mongo", false, "store raw text only, skip chunking and embeddings")
		_ = fs.Parse(rest)
		if fs.NArg() != 1 {
			fmt.Fprintf(os.Stderr, "usage: %s upload [--mongo] <file>\n", binaryName)
			return 1
		}
		return c.runUpload(fs.Arg(0), mongo, jsonOut)
	case "ask":
		query := strings.TrimSpace(strings.Join(rest, " "))
		if query == "" {
			fmt.Fprintf(os.Stderr, "usage: %s ask <question>\n", binaryName)
			return 1
		}
		return c.runAsk(query, jsonOut)
	case "search":
		fs := flag.NewFlagSet("search", flag.ContinueOnError)
		var mode, target string
		var limit int
		var threshold float64
		fs.StringVar(&mode, "mode", retrieval.ModeGlobal, "single_document|collection|global")
		fs.StringVar(&target, "target", "", "document or collection id for scoped modes")
		fs.IntVar(&limit, "limit", 0, "max results")
		fs.Float64Var(&threshold, "threshold", 0, "minimum similarity score")
		_ = fs.Parse(rest)
		query := strings.TrimSpace(strings.Join(fs.Args(), " "))
		if query == "" {
			fmt.Fprintf(os.Stderr, "usage: %s search [--mode m] [--target id] <query>\n", binaryName)
			return 1
		}
		return c.runSearch(api.SearchRequest{
			Query:          query,
			Mode:           mode,
			TargetID:       target,
			Limit:          limit,
			ScoreThreshold: threshold,
		})
	case "extract":
		if len(rest) != 1 {
			fmt.Fprintf(os.Stderr, "usage: %s extract <file>\n", binaryName)
			return 1
		}
		return c.runExtract(rest[0], jsonOut)
	case "documents":
		fs := flag.NewFlagSet("documents", flag.ContinueOnError)
		var limit int
		fs.IntVar(&limit, "limit", 100, "max entries to return")
		_ = fs.Parse(rest)
		return c.runJSONGet("/documents?limit=" + strconv.Itoa(limit))
	case "history":
		fs := flag.NewFlagSet("history", flag.ContinueOnError)
		var server, tool string
		var limit int
		fs.StringVar(&server, "server", "", "filter by server name")
		fs.StringVar(&tool, "tool", "", "filter by tool name")
		fs.IntVar(&limit, "limit", 50, "max entries to return (1-500)")
		_ = fs.Parse(rest)
		q := url.Values{}
		if server != "" {
			q.Set("server", server)
		}
		if tool != "" {
			q.Set("tool", tool)
		}
		q.Set("limit", strconv.Itoa(limit))
		return c.runJSONGet("/history?" + q.Encode())
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		configPath := fs.String("config", config.DefaultConfigPath(), "config path to validate")
		_ = fs.Parse(rest)
		if _, err := config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("config is valid: %s\n", *configPath)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage(binaryName)
		return 1
	}
}

type httpClient struct {
	base string
	http *http.Client
}

// apiError is a non-2xx daemon response, carrying its detail message.
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.status, e.detail)
}

func (c *httpClient) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running at %s? %w", c.base, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var e api.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Detail != "" {
			return nil, &apiError{status: resp.StatusCode, detail: e.Detail}
		}
		return nil, &apiError{status: resp.StatusCode, detail: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *httpClient) get(path string) (json.RawMessage, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *httpClient) postJSON(path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *httpClient) postFile(path, filePath string) (json.RawMessage, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.base+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (c *httpClient) runHealth(jsonOut bool) int {
	body, err := c.get("/health")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOut {
		return printRaw(body)
	}
	var h api.HealthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		return printRaw(body)
	}
	fmt.Printf("status: %s\n", h.Status)
	fmt.Printf("agent:  %s\n", onOff(h.AgentInitialized))
	fmt.Printf("tools:  %s\n", onOff(h.MCPClientInitialized))
	return 0
}

func (c *httpClient) runServers(jsonOut bool) int {
	body, err := c.get("/servers")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOut {
		return printRaw(body)
	}
	var resp struct {
		Servers []api.ServerInfo `json:"servers"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return printRaw(body)
	}
	for _, s := range resp.Servers {
		fmt.Printf("%-20s %-6s %s\n", s.Name, s.Transport, s.URL)
	}
	return 0
}

func (c *httpClient) runTools(server string, jsonOut bool) int {
	path := "/tools"
	if server != "" {
		path += "?server=" + url.QueryEscape(server)
	}
	body, err := c.get(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOut {
		return printRaw(body)
	}
	var resp struct {
		Tools []api.ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return printRaw(body)
	}
	for _, tool := range resp.Tools {
		desc := tool.Description
		if i := strings.IndexByte(desc, '\n'); i >= 0 {
			desc = desc[:i]
		}
		fmt.Printf("%-20s %-30s %s\n", tool.Server, tool.Name, desc)
	}
	return 0
}

func (c *httpClient) runUpload(filePath string, mongo bool, jsonOut bool) int {
	endpoint := "/documents/upload"
	if mongo {
		endpoint = "/documents/upload-mongo"
	}
	body, err := c.postFile(endpoint, filePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOut {
		return printRaw(body)
	}
	var resp api.UploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return printRaw(body)
	}
	fmt.Printf("uploaded %s\n", resp.Filename)
	fmt.Printf("document_id: %s\n", resp.DocumentID)
	fmt.Printf("stored at:   %s\n", resp.FilePath)
	return printRaw(resp.ProcessingResult)
}

func (c *httpClient) runAsk(query string, jsonOut bool) int {
	body, err := c.postJSON("/agent?query="+url.QueryEscape(query), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOut {
		return printRaw(body)
	}
	var resp api.AgentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return printRaw(body)
	}
	fmt.Println(resp.Answer)
	return 0
}

func (c *httpClient) runExtract(filePath string, jsonOut bool) int {
	body, err := c.postFile("/documents/extract", filePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOut {
		return printRaw(body)
	}
	var resp api.ExtractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return printRaw(body)
	}
	fmt.Println(resp.Text)
	return 0
}

func (c *httpClient) runSearch(req api.SearchRequest) int {
	body, err := c.postJSON("/search", req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return printRaw(body)
}

func (c *httpClient) runJSONGet(path string) int {
	body, err := c.get(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return printRaw(body)
}

func printRaw(body json.RawMessage) int {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return 0
	}
	fmt.Println(buf.String())
	return 0
}

func onOff(b bool) string {
	if b {
		return "ready"
	}
	return "unavailable"
}

func isTerminal(fd uintptr) bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	if (fi.Mode() & os.ModeCharDevice) == 0 {
		return false
	}
	_, err = os.OpenFile("/proc/self/fd/"+strconv.FormatUint(uint64(fd), 10), os.O_RDONLY, 0)
	return err == nil || errors.Is(err, os.ErrPermission)
}

func usage(binaryName string) {
	fmt.Printf("%s <command>\n", binaryName)
	fmt.Println("  health")
	fmt.Println("  servers")
	fmt.Println("  tools [--server name]")
	fmt.Println("  upload [--mongo] <file>")
	fmt.Println("  ask <question>")
	fmt.Println("  search [--mode single_document|collection|global] [--target id] [--limit n] [--threshold s] <query>")
	fmt.Println("  extract <file>")
	fmt.Println("  documents [--limit 100]")
	fmt.Println("  history [--server name] [--tool name] [--limit 50]")
	fmt.Println("  validate [--config path]")
	fmt.Println("global flags: --addr http://localhost:8080 (or DOCBRIDGE_ADDR), --json")
}
