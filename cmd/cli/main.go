package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "book":
		handleBook(args)
	case "request":
		handleRequest(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bookswap auth <register|login|logout|who>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "register":
		registerUser(args[1:])
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleBook(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bookswap book <list|mine|add|availability>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "list":
		listBooks(args[1:])
	case "mine":
		listMyBooks(args[1:])
	case "add":
		addBook(args[1:])
	case "availability":
		setAvailability(args[1:])
	default:
		fmt.Printf("unknown book command: %s\n", subCmd)
	}
}

func handleRequest(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bookswap request <send|received|sent|accept|decline>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "send":
		sendRequest(args[1:])
	case "received":
		listReceived(args[1:])
	case "sent":
		listSent(args[1:])
	case "accept":
		decideRequest(args[1:], "accepted")
	case "decline":
		decideRequest(args[1:], "declined")
	default:
		fmt.Printf("unknown request command: %s\n", subCmd)
	}
}

// Auth commands
func registerUser(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *username == "" || *password == "" {
		fmt.Println("Error: email, username, and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"email":    *email,
		"username": *username,
		"password": *password,
	}

	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/register", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ User registered: %s\n", *email)
		if token, ok := result["token"].(string); ok {
			saveToken(token)
		}
	} else {
		fmt.Printf("✗ Registration failed: %v\n", result)
	}
}

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *email)
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token[:20])
}

// Book commands
func listBooks(args []string) {
	_ = args
	books := fetchList(getAPIURL() + "/books")
	printBooks(books)
}

func listMyBooks(args []string) {
	_ = args
	books := fetchList(getAPIURL() + "/books/my-books")
	printBooks(books)
}

func printBooks(books []map[string]interface{}) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tCONDITION\tAVAILABLE")
	for _, b := range books {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", b["id"], b["title"], b["author"], b["condition"], b["available"])
	}
	w.Flush()
}

func addBook(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "book title")
	author := fs.String("author", "", "book author")
	condition := fs.String("condition", "Good", "condition (New, Like New, Very Good, Good, Fair, Poor)")
	image := fs.String("image", "", "cover image URL (optional)")

	fs.Parse(args)

	if *title == "" || *author == "" {
		fmt.Println("Error: title and author are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"title":     *title,
		"author":    *author,
		"condition": *condition,
	}
	if *image != "" {
		payload["image"] = *image
	}

	result, status := postJSON(getAPIURL()+"/books", payload)
	if status == 201 {
		fmt.Printf("✓ Book listed: %v (%v)\n", result["title"], result["id"])
	} else {
		fmt.Printf("✗ Listing failed: %v\n", result)
	}
}

func setAvailability(args []string) {
	fs := flag.NewFlagSet("availability", flag.ExitOnError)
	available := fs.Bool("available", true, "whether the book is open for requests")

	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Println("Usage: bookswap book availability [-available=false] <book-id>")
		return
	}

	payload := map[string]bool{"available": *available}
	result, status := putJSON(getAPIURL()+"/books/"+rest[0], payload)
	if status == 200 {
		fmt.Printf("✓ Book %v available=%v\n", result["id"], result["available"])
	} else {
		fmt.Printf("✗ Update failed: %v\n", result)
	}
}

// Request commands
func sendRequest(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	message := fs.String("message", "", "message to the owner (optional)")

	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Println("Usage: bookswap request send [-message \"...\"] <book-id>")
		return
	}

	payload := map[string]string{"bookId": rest[0]}
	if *message != "" {
		payload["message"] = *message
	}

	result, status := postJSON(getAPIURL()+"/requests", payload)
	if status == 201 {
		fmt.Printf("✓ Request sent: %v\n", result["id"])
	} else {
		fmt.Printf("✗ Request failed: %v\n", result)
	}
}

func listReceived(args []string) {
	_ = args
	requests := fetchList(getAPIURL() + "/requests/received")
	printRequests(requests)
}

func listSent(args []string) {
	_ = args
	requests := fetchList(getAPIURL() + "/requests/sent")
	printRequests(requests)
}

func printRequests(requests []map[string]interface{}) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBOOK\tSTATUS\tCREATED")
	for _, r := range requests {
		title := ""
		if book, ok := r["book"].(map[string]interface{}); ok {
			title, _ = book["title"].(string)
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", r["id"], title, r["status"], r["createdAt"])
	}
	w.Flush()
}

func decideRequest(args []string, status string) {
	if len(args) < 1 {
		fmt.Printf("Usage: bookswap request %s <request-id>\n", statusVerb(status))
		return
	}

	payload := map[string]string{"status": status}
	result, code := putJSON(getAPIURL()+"/requests/"+args[0], payload)
	if code == 200 {
		fmt.Printf("✓ Request %v %v\n", result["id"], result["status"])
	} else {
		fmt.Printf("✗ Decision failed: %v\n", result)
	}
}

func statusVerb(status string) string {
	if status == "accepted" {
		return "accept"
	}
	return "decline"
}

// Helper functions
func fetchList(url string) []map[string]interface{} {
	req, _ := http.NewRequest("GET", url, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil
	}
	defer resp.Body.Close()

	var items []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&items)
	return items
}

func postJSON(url string, payload interface{}) (map[string]interface{}, int) {
	return sendJSON("POST", url, payload)
}

func putJSON(url string, payload interface{}) (map[string]interface{}, int) {
	return sendJSON("PUT", url, payload)
}

func sendJSON(method, url string, payload interface{}) (map[string]interface{}, int) {
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest(method, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, 0
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode
}

func getAPIURL() string {
	if url := os.Getenv("BOOKSWAP_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.bookswap/token"
}

func saveToken(token string) error {
	os.MkdirAll(os.Getenv("HOME")+"/.bookswap", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`BookSwap CLI

Usage:
  bookswap <command> [options]

Commands:
  auth     User authentication (register, login, logout, who)
  book     Book operations (list, mine, add, availability)
  request  Exchange requests (send, received, sent, accept, decline)
  help     Show this help message

Environment Variables:
  BOOKSWAP_API    API endpoint (default: http://localhost:8080/api)

Examples:
  bookswap auth register -email user@example.com -username user -password pass
  bookswap auth login -email user@example.com -password pass
  bookswap book list
  bookswap book add -title "Dune" -author "Frank Herbert" -condition "Very Good"
  bookswap request send -message "Interested!" <book-id>
  bookswap request accept <request-id>
`)
}
