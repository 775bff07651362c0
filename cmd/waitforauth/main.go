package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

func main() {
	port := os.Getenv("CORRAL_AUTH_PORT")
	if port == "" {
		port = "3456"
	}

	timeout := 60 * time.Second
	if raw := os.Getenv("WAIT_FOR_AUTH_TIMEOUT_SEC"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			fmt.Fprintf(os.Stderr, "invalid WAIT_FOR_AUTH_TIMEOUT_SEC: %q\n", raw)
			os.Exit(2)
		}
		timeout = time.Duration(secs) * time.Second
	}

	url := fmt.Sprintf("http://127.0.0.1:%s/api/auth/ok", port)
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)
	for {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				fmt.Println("auth server ready")
				return
			}
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
		if time.Now().After(deadline) {
			fmt.Fprintf(os.Stderr, "auth server not ready within %s: %v\n", timeout, err)
			os.Exit(1)
		}
		time.Sleep(time.Second)
	}
}
