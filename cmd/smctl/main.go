// smctl is a small operator tool for driving the securities and identity
// services over HTTP: onboarding, instrument setup, and the issuance smoke
// flow.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

const usage = `usage:
  smctl issuer create --name <name> [--lei <company_lei>]
  smctl agent create --token <issuer_token>
  smctl investor kyc --country <cc> [--favourite-int <n>]
  smctl instrument create --token <issuer_token> --type <Equity|Bond> --form <Bearer|Registered> --name <name> --symbol <sym>
  smctl instrument list
  smctl round close --token <issuer_token> --instrument <id>
  smctl event append --token <agent_token> --instrument <id> --action <Issuance|Coupon|Dividend> [--percent <pct>]
  smctl vintage issue --token <agent_token> --instrument <id>
  smctl subscribe --token <investor_token> --instrument <id> --quantity <qty>

environment:
  SM_BASE_URL           securities service (default http://localhost:8082)
  SM_IDENTITY_BASE_URL  identity service (default http://localhost:8081)`

func main() {
	if len(os.Args) < 3 {
		fail(usage)
	}
	switch os.Args[1] + " " + os.Args[2] {
	case "issuer create":
		runIssuerCreate(os.Args[3:])
	case "agent create":
		runAgentCreate(os.Args[3:])
	case "investor kyc":
		runInvestorKYC(os.Args[3:])
	case "instrument create":
		runInstrumentCreate(os.Args[3:])
	case "instrument list":
		runInstrumentList()
	case "round close":
		runRoundClose(os.Args[3:])
	case "event append":
		runEventAppend(os.Args[3:])
	case "vintage issue":
		runVintageIssue(os.Args[3:])
	default:
		if os.Args[1] == "subscribe" {
			runSubscribe(os.Args[2:])
			return
		}
		fail(usage)
	}
}

func runIssuerCreate(args []string) {
	fs := flag.NewFlagSet("issuer create", flag.ExitOnError)
	name := fs.String("name", "", "issuer display name")
	lei := fs.String("lei", "", "issuer company LEI")
	_ = fs.Parse(args)
	if *name == "" {
		fail("--name is required")
	}
	out := post(identityBase()+"/identity/issuers", "", map[string]any{
		"name":        *name,
		"company_lei": *lei,
	})
	printJSON(out)
}

func runAgentCreate(args []string) {
	fs := flag.NewFlagSet("agent create", flag.ExitOnError)
	token := fs.String("token", "", "issuer bearer token")
	_ = fs.Parse(args)
	if *token == "" {
		fail("--token is required")
	}
	printJSON(post(identityBase()+"/identity/agents", *token, map[string]any{}))
}

func runInvestorKYC(args []string) {
	fs := flag.NewFlagSet("investor kyc", flag.ExitOnError)
	country := fs.String("country", "", "country of residence")
	favourite := fs.Int("favourite-int", 0, "favourite integer")
	_ = fs.Parse(args)
	if *country == "" {
		fail("--country is required")
	}
	printJSON(post(identityBase()+"/identity/investors/kyc", "", map[string]any{
		"country":       *country,
		"favourite_int": *favourite,
	}))
}

func runInstrumentCreate(args []string) {
	fs := flag.NewFlagSet("instrument create", flag.ExitOnError)
	token := fs.String("token", "", "issuer bearer token")
	typ := fs.String("type", "Bond", "security type")
	form := fs.String("form", "Registered", "security form")
	name := fs.String("name", "", "instrument name")
	symbol := fs.String("symbol", "", "instrument symbol")
	_ = fs.Parse(args)
	if *token == "" || *name == "" || *symbol == "" {
		fail("--token, --name and --symbol are required")
	}
	printJSON(post(securitiesBase()+"/securities/instruments", *token, map[string]any{
		"security_type": *typ,
		"security_form": *form,
		"name":          *name,
		"symbol":        *symbol,
	}))
}

func runInstrumentList() {
	req, err := http.NewRequest(http.MethodGet, securitiesBase()+"/securities/instruments", nil)
	if err != nil {
		fail(err.Error())
	}
	printJSON(do(req))
}

func runRoundClose(args []string) {
	fs := flag.NewFlagSet("round close", flag.ExitOnError)
	token := fs.String("token", "", "issuer bearer token")
	instrument := fs.String("instrument", "", "instrument id")
	_ = fs.Parse(args)
	if *token == "" || *instrument == "" {
		fail("--token and --instrument are required")
	}
	printJSON(post(securitiesBase()+"/securities/instruments/"+*instrument+"/subscription/close", *token, nil))
}

func runEventAppend(args []string) {
	fs := flag.NewFlagSet("event append", flag.ExitOnError)
	token := fs.String("token", "", "agent bearer token")
	instrument := fs.String("instrument", "", "instrument id")
	action := fs.String("action", "", "action type")
	percent := fs.String("percent", "0", "event percentage")
	_ = fs.Parse(args)
	if *token == "" || *instrument == "" || *action == "" {
		fail("--token, --instrument and --action are required")
	}
	printJSON(post(securitiesBase()+"/securities/instruments/"+*instrument+"/events", *token, map[string]any{
		"action_type": *action,
		"percent":     *percent,
	}))
}

func runVintageIssue(args []string) {
	fs := flag.NewFlagSet("vintage issue", flag.ExitOnError)
	token := fs.String("token", "", "agent bearer token")
	instrument := fs.String("instrument", "", "instrument id")
	_ = fs.Parse(args)
	if *token == "" || *instrument == "" {
		fail("--token and --instrument are required")
	}
	printJSON(post(securitiesBase()+"/securities/instruments/"+*instrument+"/vintages/issue", *token, nil))
}

func runSubscribe(args []string) {
	fs := flag.NewFlagSet("subscribe", flag.ExitOnError)
	token := fs.String("token", "", "investor bearer token")
	instrument := fs.String("instrument", "", "instrument id")
	quantity := fs.String("quantity", "", "quantity of units")
	_ = fs.Parse(args)
	if *token == "" || *instrument == "" || *quantity == "" {
		fail("--token, --instrument and --quantity are required")
	}
	printJSON(post(securitiesBase()+"/securities/subscriptions", *token, map[string]any{
		"instrument_id": *instrument,
		"quantity":      *quantity,
	}))
}

func identityBase() string   { return getenvOr("SM_IDENTITY_BASE_URL", "http://localhost:8081") }
func securitiesBase() string { return getenvOr("SM_BASE_URL", "http://localhost:8082") }

func getenvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func post(url, token string, body any) map[string]any {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fail(err.Error())
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		fail(err.Error())
	}
	req.Header.Set("content-type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(req)
}

func do(req *http.Request) map[string]any {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fail(err.Error())
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fail(fmt.Sprintf("decode response (%d): %v", resp.StatusCode, err))
	}
	if resp.StatusCode >= 300 {
		b, _ := json.MarshalIndent(out, "", "  ")
		fail(fmt.Sprintf("%s returned %d:\n%s", req.URL.Path, resp.StatusCode, b))
	}
	return out
}

func printJSON(v map[string]any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
