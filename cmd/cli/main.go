// Command cli is a thin terminal client for a running zerorag server: it
// uploads documents, polls ingestion progress, and sends RAG queries.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	labelColor   = color.New(color.FgYellow)
)

func main() {
	server := flag.String("server", "http://localhost:8080", "zerorag server base URL")
	apiKey := flag.String("api-key", os.Getenv("ZERORAG_API_KEY"), "API key, if the server requires one")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := &client{base: *server, apiKey: *apiKey, http: &http.Client{Timeout: 2 * time.Minute}}

	var err error
	switch args[0] {
	case "upload":
		err = cmdUpload(client, args[1:])
	case "query":
		err = cmdQuery(client, args[1:])
	case "list":
		err = cmdList(client)
	case "status":
		err = cmdStatus(client, args[1:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		errorColor.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `zerorag-cli: a terminal client for the zerorag server

Usage:
  zerorag-cli upload <file>        ingest a document
  zerorag-cli status <document_id> poll upload progress
  zerorag-cli list                 list ingested documents
  zerorag-cli query "<text>"       ask a question

Flags:`)
	flag.PrintDefaults()
}

type client struct {
	base   string
	apiKey string
	http   *http.Client
}

func (c *client) newRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

func (c *client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var env struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		if env.Detail != "" {
			return fmt.Errorf("%s: %s", resp.Status, env.Detail)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func cmdUpload(c *client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zerorag-cli upload <file>")
	}
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(http.MethodPost, "/documents/upload", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		DocumentID string `json:"document_id"`
		Status     string `json:"status"`
	}
	if err := c.do(req, &result); err != nil {
		return err
	}
	successColor.Printf("uploaded %s\n", path)
	labelColor.Print("document_id: ")
	fmt.Println(result.DocumentID)
	return nil
}

func cmdStatus(c *client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zerorag-cli status <document_id>")
	}
	req, err := c.newRequest(http.MethodGet, "/documents/upload/"+args[0]+"/progress", nil)
	if err != nil {
		return err
	}
	var progress struct {
		Status      string `json:"status"`
		Progress    int    `json:"progress"`
		CurrentStep string `json:"current_step"`
		ErrorMessage string `json:"error_message"`
	}
	if err := c.do(req, &progress); err != nil {
		return err
	}
	infoColor.Printf("%s  %3d%%  %s\n", progress.Status, progress.Progress, progress.CurrentStep)
	if progress.ErrorMessage != "" {
		errorColor.Println(progress.ErrorMessage)
	}
	return nil
}

func cmdList(c *client) error {
	req, err := c.newRequest(http.MethodGet, "/documents", nil)
	if err != nil {
		return err
	}
	var result struct {
		Documents []struct {
			ID       string `json:"id"`
			FileName string `json:"file_name"`
			Status   string `json:"status"`
		} `json:"documents"`
	}
	if err := c.do(req, &result); err != nil {
		return err
	}
	for _, d := range result.Documents {
		labelColor.Printf("%-36s  ", d.ID)
		fmt.Printf("%-10s  %s\n", d.Status, d.FileName)
	}
	return nil
}

func cmdQuery(c *client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(`usage: zerorag-cli query "<text>"`)
	}
	body, err := json.Marshal(map[string]interface{}{
		"query_text":      args[0],
		"include_sources": true,
	})
	if err != nil {
		return err
	}
	req, err := c.newRequest(http.MethodPost, "/query", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Answer           string `json:"answer"`
		ValidationStatus string `json:"validation_status"`
		Sources          []struct {
			FileName string  `json:"file_name"`
			Score    float64 `json:"score"`
		} `json:"sources"`
	}
	if err := c.do(req, &result); err != nil {
		return err
	}
	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		labelColor.Println("\nsources:")
		for _, s := range result.Sources {
			infoColor.Printf("  %s  (score %.2f)\n", s.FileName, s.Score)
		}
	}
	if result.ValidationStatus != "valid" {
		errorColor.Printf("\nvalidation_status: %s\n", result.ValidationStatus)
	}
	return nil
}
