package clientcmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

// NewQueueCommand returns the queue command group: append, read, history,
// addresses. apiURL supplies the server base URL at execution time.
func NewQueueCommand(apiURL func() string) *cobra.Command {
	queueCmd := &cobra.Command{Use: "queue", Short: "Queue operations"}

	appendCmd := &cobra.Command{
		Use:   "append [payload]",
		Short: "Append an entry and print its address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string][]byte{"payload": []byte(args[0])})
			var resp struct {
				Address string `json:"address"`
			}
			if err := postJSON(apiURL()+"/v1/append", body, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Address)
			return nil
		},
	}
	queueCmd.AddCommand(appendCmd)

	readCmd := &cobra.Command{
		Use:   "read [address]",
		Short: "Read entries starting at an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			body, _ := json.Marshal(map[string]any{"address": args[0], "limit": limit})
			var resp struct {
				Entries []struct {
					Address string `json:"address"`
					Payload []byte `json:"payload"`
				} `json:"entries"`
				Next string `json:"next"`
			}
			if err := postJSON(apiURL()+"/v1/read", body, &resp); err != nil {
				return err
			}
			for _, e := range resp.Entries {
				fmt.Printf("%s\t%s\n", e.Address, e.Payload)
			}
			if resp.Next != "" {
				fmt.Println("next:", resp.Next)
			}
			return nil
		},
	}
	readCmd.Flags().Int("limit", 100, "Maximum entries to read")
	queueCmd.AddCommand(readCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print per-cycle entry counts and address ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(apiURL() + "/v1/history")
		},
	}
	queueCmd.AddCommand(historyCmd)

	addressesCmd := &cobra.Command{
		Use:   "addresses",
		Short: "Print the first and last addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(apiURL() + "/v1/addresses")
		},
	}
	queueCmd.AddCommand(addressesCmd)

	return queueCmd
}

// NewPolicyCommand returns the policy command group.
func NewPolicyCommand(apiURL func() string) *cobra.Command {
	policyCmd := &cobra.Command{Use: "policy", Short: "Roll policy catalog"}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the roll policy catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(apiURL() + "/v1/policies")
		},
	}
	policyCmd.AddCommand(listCmd)
	return policyCmd
}

func postJSON(url string, body []byte, out any) error {
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(b))
	}
	return json.Unmarshal(b, out)
}

func getAndPrint(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(b))
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		fmt.Println(string(b))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
