package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Cogito server URL")
	thinking := flag.Bool("thinking", false, "Show the agent's thinking steps")
	flag.Parse()

	fmt.Println("Cogito CLI Chat")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /status, /services, /explain <query>, /clear")
	fmt.Println("---")

	sessionID := ""
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/status" {
			fetchStatus(*server)
			continue
		}
		if input == "/services" {
			fetchServices(*server)
			continue
		}
		if strings.HasPrefix(input, "/explain ") {
			explain(*server, sessionID, strings.TrimPrefix(input, "/explain "))
			continue
		}
		if input == "/clear" {
			clearHistory(*server, sessionID)
			continue
		}

		sessionID = sendMessage(*server, sessionID, input, *thinking)
	}
}

func sendMessage(server, sessionID, message string, showThinking bool) string {
	body, _ := json.Marshal(map[string]any{
		"message":       message,
		"session_id":    sessionID,
		"show_thinking": showThinking,
		"use_rag":       true,
	})
	resp, err := http.Post(server+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Failed to send message: %v", err)
		return sessionID
	}
	defer resp.Body.Close()

	var out struct {
		Answer        string `json:"answer"`
		SessionID     string `json:"session_id"`
		ThinkingSteps []struct {
			StepNumber int    `json:"step_number"`
			Thought    string `json:"thought"`
			Reasoning  string `json:"reasoning"`
			Action     string `json:"action"`
		} `json:"thinking_steps"`
		ServicesUsed   []string `json:"services_used"`
		RAGContextUsed bool     `json:"rag_context_used"`
		ProcessingTime float64  `json:"processing_time"`
		Error          string   `json:"error"`
		Detail         string   `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		printError("Failed to parse response: %v", err)
		return sessionID
	}
	if out.Error != "" {
		printError("%s: %s", out.Error, out.Detail)
		return sessionID
	}

	if showThinking {
		fmt.Println("\nThinking process:")
		for _, step := range out.ThinkingSteps {
			fmt.Printf("  Step %d: %s\n", step.StepNumber, step.Thought)
			if step.Action != "" {
				fmt.Printf("    %s\n", step.Action)
			}
		}
	}

	fmt.Printf("\n%s\n", out.Answer)
	fmt.Printf("\n[services: %s | rag: %t | %.2fs]\n",
		strings.Join(out.ServicesUsed, ", "), out.RAGContextUsed, out.ProcessingTime)
	return out.SessionID
}

func fetchStatus(server string) {
	resp, err := http.Get(server + "/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var status struct {
		Status string `json:"status"`
		Stats  struct {
			TotalDocuments  int      `json:"total_documents"`
			Sources         []string `json:"sources"`
			VectorStoreType string   `json:"vector_store_type"`
		} `json:"knowledge_base_stats"`
		AvailableServices []string `json:"available_services"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Printf("Status: %s\n", status.Status)
	fmt.Printf("Knowledge base: %d documents from %v (%s store)\n",
		status.Stats.TotalDocuments, status.Stats.Sources, status.Stats.VectorStoreType)
	fmt.Printf("Services: %s\n", strings.Join(status.AvailableServices, ", "))
}

func fetchServices(server string) {
	resp, err := http.Get(server + "/services")
	if err != nil {
		printError("Failed to fetch services: %v", err)
		return
	}
	defer resp.Body.Close()

	var out struct {
		Services map[string]struct {
			Description string `json:"description"`
			Type        string `json:"type"`
		} `json:"services"`
		TotalCount int `json:"total_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		printError("Failed to parse services: %v", err)
		return
	}
	fmt.Printf("%d services:\n", out.TotalCount)
	for name, info := range out.Services {
		fmt.Printf("  %s (%s): %s\n", name, info.Type, info.Description)
	}
}

func explain(server, sessionID, query string) {
	body, _ := json.Marshal(map[string]any{
		"message":    query,
		"session_id": sessionID,
	})
	resp, err := http.Post(server+"/explain", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Failed to explain: %v", err)
		return
	}
	defer resp.Body.Close()

	var out struct {
		Explanation string `json:"explanation"`
		Error       string `json:"error"`
		Detail      string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		printError("Failed to parse explanation: %v", err)
		return
	}
	if out.Error != "" {
		printError("%s: %s", out.Error, out.Detail)
		return
	}
	fmt.Println(out.Explanation)
}

func clearHistory(server, sessionID string) {
	url := server + "/conversation-history"
	if sessionID != "" {
		url += "?session_id=" + sessionID
	}
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		printError("Failed to build request: %v", err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		printError("Failed to clear history: %v", err)
		return
	}
	resp.Body.Close()
	fmt.Println("Conversation history cleared.")
}

func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
