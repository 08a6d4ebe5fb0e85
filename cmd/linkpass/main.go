// linkpass es la CLI admin del broker: administra fingerprints de providers
// contra la superficie /v1/fingerprint protegida con X-Admin-API-Key.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("LINKPASS_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("LINKPASS_ADMIN_KEY", "")
		out     = envOr("LINKPASS_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "linkpass",
		Short: "CLI admin de linkpass (fingerprints de providers)",
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del Admin API (env LINKPASS_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del Admin API (env LINKPASS_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}
	// Resolver flags después del parse.
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if apiKey == "" {
			return fmt.Errorf("falta API key (flag --admin-api-key o env LINKPASS_ADMIN_KEY)")
		}
		cl.BaseURL, cl.APIKey, cl.OutFormat = baseURL, apiKey, out
		return nil
	}

	fpCmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Administra los fingerprints de un provider",
	}

	listCmd := &cobra.Command{
		Use:   "list <provider-id>",
		Short: "Lista los fingerprints del provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/fingerprint/"+args[0], nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("list fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	var createDomain string
	createCmd := &cobra.Command{
		Use:   "create <provider-id> <name>",
		Short: "Crea un fingerprint; el secreto se imprime una única vez",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, _ := json.Marshal(map[string]string{
				"name":   args[1],
				"domain": createDomain,
			})
			status, body, err := cl.do("POST", "/v1/fingerprint/"+args[0], payload)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("create fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	createCmd.Flags().StringVar(&createDomain, "domain", "", "Dominio informativo de la integración")

	deleteCmd := &cobra.Command{
		Use:   "delete <provider-id> <name>",
		Short: "Elimina un fingerprint por nombre",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/v1/fingerprint/"+args[0]+"/"+args[1], nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("delete fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	fpCmd.AddCommand(listCmd, createCmd, deleteCmd)
	root.AddCommand(fpCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
