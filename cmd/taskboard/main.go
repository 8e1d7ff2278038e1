// Command taskboard is the taskboard CLI client.
package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/taskboard/internal/version"
)

const defaultServer = "http://localhost:3000"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cli := &Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
	var serverURL string

	root := &cobra.Command{
		Use:           "taskboard",
		Short:         "taskboard - CLI for the taskboard server",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			cli.BaseURL = strings.TrimRight(serverURL, "/")
		},
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "taskboard server URL")
	root.PersistentFlags().StringVar(&cli.Token, "token", os.Getenv("TASKBOARD_TOKEN"), "JWT auth token (or $TASKBOARD_TOKEN)")

	root.AddCommand(
		statusCmd(cli),
		loginCmd(cli),
		tasksCmd(cli),
		taskCmd(cli),
		reportsCmd(cli),
	)
	return root
}

// --- status ---

func statusCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var root map[string]any
			if err := c.get("/", &root); err != nil {
				return err
			}
			var ver map[string]string
			if err := c.get("/version", &ver); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:  %s\n", strVal(root["message"]))
			fmt.Fprintf(out, "version: %s\n", ver["version"])
			return nil
		},
	}
}

// --- login ---

func loginCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Log in and print a token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]string
			if err := c.post("/auth/login", map[string]string{"email": args[0], "password": args[1]}, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp["token"])
			return nil
		},
	}
}

// --- tasks ---

func tasksCmd(c *Client) *cobra.Command {
	var status, team, project, owner, tag string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			for k, v := range map[string]string{"status": status, "team": team, "project": project, "owner": owner, "tag": tag} {
				if v != "" {
					q.Set(k, v)
				}
			}
			path := "/tasks"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var tasks []map[string]any
			if err := c.get(path, &tasks); err != nil {
				if strings.Contains(err.Error(), "server returned 404") {
					fmt.Fprintln(cmd.OutOrStdout(), "no tasks")
					return nil
				}
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "filter by status")
	f.StringVar(&team, "team", "", "filter by team id")
	f.StringVar(&project, "project", "", "filter by project id")
	f.StringVar(&owner, "owner", "", "filter by owner id")
	f.StringVar(&tag, "tag", "", "filter by tag id")
	return cmd
}

func printTasks(out io.Writer, tasks []map[string]any) {
	fmt.Fprintf(out, "%-36s %-30s %-12s %-16s %s\n", "ID", "NAME", "STATUS", "TEAM", "DAYS")
	fmt.Fprintln(out, strings.Repeat("-", 104))
	for _, t := range tasks {
		fmt.Fprintf(out, "%-36s %-30s %-12s %-16s %s\n",
			strVal(t["_id"]),
			truncate(strVal(t["name"]), 29),
			strVal(t["status"]),
			truncate(nameOf(t["team"]), 15),
			strVal(t["timeToComplete"]),
		)
	}
}

// --- task subcommands ---

func taskCmd(c *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, update or delete a task",
	}
	cmd.AddCommand(taskCreateCmd(c), taskStatusCmd(c), taskDeleteCmd(c))
	return cmd
}

func taskCreateCmd(c *Client) *cobra.Command {
	var (
		project, team, status string
		owners, tags          []string
		days                  float64
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"name":           strings.Join(args, " "),
				"project":        project,
				"team":           team,
				"owners":         owners,
				"tags":           tags,
				"timeToComplete": days,
				"status":         status,
			}
			var resp struct {
				Task map[string]any `json:"task"`
			}
			if err := c.post("/tasks", body, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created task %s\n", strVal(resp.Task["_id"]))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&project, "project", "", "project id")
	f.StringVar(&team, "team", "", "team id")
	f.StringSliceVar(&owners, "owner", nil, "owner user id (repeatable)")
	f.StringSliceVar(&tags, "tag", nil, "tag id (repeatable)")
	f.Float64Var(&days, "days", 0, "time to complete, in days")
	f.StringVar(&status, "status", "To Do", "initial status")
	return cmd
}

func taskStatusCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set a task's status",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := strings.Join(args[1:], " ")
			var view map[string]any
			if err := c.put("/tasks/"+url.PathEscape(args[0]), map[string]string{"status": status}, &view); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s is now %s\n", args[0], strVal(view["status"]))
			return nil
		},
	}
}

func taskDeleteCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.delete("/tasks/"+url.PathEscape(args[0]), nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s deleted\n", args[0])
			return nil
		},
	}
}

// --- reports ---

func reportsCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "Print all reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			var done map[string]int
			if err := c.get("/reports/work-done-last-week", &done); err != nil {
				return err
			}
			var pending map[string]float64
			if err := c.get("/reports/pending-work-days", &pending); err != nil {
				return err
			}
			fmt.Fprintf(out, "work done last week: %d\n", done["totalWorkDoneLastWeek"])
			fmt.Fprintf(out, "pending work days:   %g\n", pending["pendingWorkDays"])

			var byTeam []map[string]any
			if err := c.get("/reports/tasks-closed-by-team", &byTeam); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nclosed by team:")
			for _, r := range byTeam {
				fmt.Fprintf(out, "  %-24s %s\n", strVal(r["teamName"]), strVal(r["closedTasks"]))
			}

			var byOwner []map[string]any
			if err := c.get("/reports/tasks-closed-by-owner", &byOwner); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nclosed by owner:")
			for _, r := range byOwner {
				fmt.Fprintf(out, "  %-24s %s\n", strVal(r["ownerName"]), strVal(r["closedTasks"]))
			}
			return nil
		},
	}
}
