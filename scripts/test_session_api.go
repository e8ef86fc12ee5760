package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Smoke test against a running server (go run ./scripts, BASE_URL overrides the default).
var baseURL = "http://localhost:3000/api/session/v1"

// Pretty print JSON helper
func prettyPrint(body []byte) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Println(string(body))
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// Request helper; the cookie jar keeps the browser session across calls.
func sendRequest(client *http.Client, method, url string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func step(client *http.Client, title, method, url string, body interface{}) []byte {
	color.Yellow("\n%s", title)
	resp, respBody, err := sendRequest(client, method, url, body)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	if resp.StatusCode >= 400 {
		color.Red("Status: %s", resp.Status)
	} else {
		color.Green("Status: %s", resp.Status)
	}
	prettyPrint(respBody)
	return respBody
}

// streamChat prints the assistant increments of one SSE turn as they arrive.
func streamChat(client *http.Client, content string) {
	color.Yellow("\n4. Stream a chat turn")
	payload, _ := json.Marshal(map[string]string{"content": content})
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	color.Green("Status: %s", resp.Status)

	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var frame struct {
				Content string          `json:"content"`
				Done    json.RawMessage `json:"done"`
				Error   string          `json:"error"`
			}
			_ = json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame)
			switch event {
			case "delta":
				fmt.Print(frame.Content)
			case "done":
				fmt.Println()
				prettyPrint(frame.Done)
			case "error":
				fmt.Println()
				color.Red("Stream error: %s", frame.Error)
			}
		}
	}
}

func main() {
	if v := os.Getenv("BASE_URL"); v != "" {
		baseURL = v
	}

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar} // No timeout, replies stream

	color.Cyan("🚀 Starting Session API Smoke Test (%s)\n", baseURL)

	step(client, "1. Initialize session", http.MethodGet, "", nil)
	step(client, "2. Start a new chat", http.MethodPost, "/new-chat", nil)
	step(client, "3. List past conversations", http.MethodGet, "/threads", nil)
	streamChat(client, "Hello! What can you do?")
	step(client, "5. Message history", http.MethodGet, "/history", nil)
	step(client, "6. Select unknown thread (expect 404)", http.MethodPost, "/threads/select", map[string]string{"thread_id": "does-not-exist"})

	color.Cyan("\n✅ Smoke test finished")
}
