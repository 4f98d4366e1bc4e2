package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Seeds a running CrewDesk stack with a manager, a few workers, personal
// schedule items and an open task, so the timeline and pool views have
// something to show.
func main() {
	var (
		baseURL    = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "gateway base url")
		department = flag.String("department", getenv("DEPARTMENT", "logistics"), "department to seed")
		workers    = flag.Int("workers", 3, "number of worker accounts")
		password   = flag.String("password", getenv("SEED_PASSWORD", "changeme123"), "password for seeded accounts")
	)
	flag.Parse()

	base := strings.TrimRight(*baseURL, "/")
	stamp := time.Now().UTC().Format("20060102150405")

	workerTokens := make([]string, 0, *workers)
	for i := 0; i < *workers; i++ {
		email := fmt.Sprintf("worker%d+%s@crewdesk.local", i+1, stamp)
		token, err := register(base, email, *password, fmt.Sprintf("Worker %d", i+1), *department)
		if err != nil {
			fatal("register worker: " + err.Error())
		}
		workerTokens = append(workerTokens, token)
		fmt.Printf("worker registered: %s\n", email)
	}

	start := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	end := time.Now().UTC().AddDate(0, 0, 6).Format("2006-01-02")

	for i, token := range workerTokens {
		body := map[string]any{
			"title":       fmt.Sprintf("Focus block %d", i+1),
			"start_date":  start,
			"end_date":    end,
			"can_support": i%2 == 0,
		}
		if err := post(base+"/api/v1/schedule/personal-tasks/create", token, body); err != nil {
			fatal("create personal task: " + err.Error())
		}
	}
	fmt.Println("personal schedule items created")

	taskBody := map[string]any{
		"title":       "Inventory count " + stamp,
		"description": "Quarterly warehouse inventory count.",
		"department":  *department,
		"priority":    "normal",
		"start_date":  start,
		"end_date":    end,
		"max_workers": *workers,
		"skills":      []string{"inventory", "forklift"},
	}
	if err := post(base+"/api/v1/tasks/create", workerTokens[0], taskBody); err != nil {
		fatal("create task: " + err.Error())
	}
	fmt.Println("task proposed (pending approval)")
	fmt.Println("done; approve the task with a manager account to open it")
}

func register(base, email, password, displayName, department string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
		"department":   department,
	})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(base+"/api/v1/auth/register", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("register returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("no access token in register response")
	}
	return out.AccessToken, nil
}

func post(url, token string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
