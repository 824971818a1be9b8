// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"github.com/spf13/cobra"
)

// chatHTTPClient gets a generous timeout: an escalation answer from the
// expensive model can take minutes.
var chatHTTPClient = &http.Client{Timeout: 5 * time.Minute}

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	resp, err := sendChatRequest(question, "")
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	printChatResponse(resp)
}

func runChatCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	session := sessionID
	fmt.Println("Kodiak support triage. Type 'exit' or 'quit' to leave.")
	if session != "" {
		fmt.Printf("Resuming session %s\n", session)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")

		lineCh := make(chan string, 1)
		go func() {
			if scanner.Scan() {
				lineCh <- scanner.Text()
				return
			}
			close(lineCh)
		}()

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println("\nBye.")
			return
		case line, ok = <-lineCh:
			if !ok {
				fmt.Println("\nBye.")
				return
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Println("Bye.")
			return
		}

		resp, err := sendChatRequest(line, session)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		session = resp.SessionId
		printChatResponse(resp)
	}
}

func runIntentsCommand(cmd *cobra.Command, args []string) {
	url := fmt.Sprintf("%s/v1/intents", getServiceBaseURL())
	resp, err := chatHTTPClient.Get(url)
	if err != nil {
		log.Fatalf("Error reaching the triage service: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Service returned status %d: %s", resp.StatusCode, string(body))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

// sendChatRequest posts one message to the triage service.
func sendChatRequest(message, session string) (*datatypes.ChatResponse, error) {
	reqBody := datatypes.ChatRequest{
		Message:   message,
		SessionId: session,
	}
	payload, err := json.Marshal(&reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat", getServiceBaseURL())
	resp, err := chatHTTPClient.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to reach the triage service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("triage service returned status %d: %s",
			resp.StatusCode, string(body))
	}

	var chatResp datatypes.ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &chatResp, nil
}

func printChatResponse(resp *datatypes.ChatResponse) {
	fmt.Printf("\n%s\n", resp.Response)
	fmt.Printf("\n[intent=%s confidence=%.2f bucket=%s cost=%s",
		resp.Intent, resp.Confidence, resp.Bucket, resp.CostTier)
	if resp.RetrievalDegraded {
		fmt.Print(" retrieval=degraded")
	}
	fmt.Println("]")
}
