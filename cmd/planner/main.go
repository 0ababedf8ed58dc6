// Command planner is the study planner CLI client. It talks to a running
// plannerd over HTTP.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/planner/auth"
	"github.com/GoCodeAlone/planner/internal/version"
	"github.com/GoCodeAlone/planner/planner"
	"github.com/GoCodeAlone/planner/task"
)

const defaultServer = "http://localhost:9090"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree writing to out.
func newRootCmd(out io.Writer) *cobra.Command {
	var (
		serverURL string
		token     string
		cli       = &Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
	)

	root := &cobra.Command{
		Use:           "planner",
		Short:         "Study planner client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cli.BaseURL = strings.TrimRight(serverURL, "/")
			cli.Token = token
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("PLANNER_SERVER", defaultServer), "planner daemon URL")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("PLANNER_TOKEN"), "session token (or $PLANNER_TOKEN)")

	root.AddCommand(
		versionCmd(),
		statusCmd(cli),
		signInCmd(cli),
		signUpCmd(cli),
		signOutCmd(cli),
		tasksCmd(cli),
		addCmd(cli),
		toggleCmd(cli),
		clearCompletedCmd(cli),
		clearCmd(cli),
		saveCmd(cli),
		calendarCmd(cli),
		settingsCmd(cli),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// --- version / status ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "planner %s\n", version.String())
		},
	}
}

type statusResult struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Uptime  string         `json:"uptime"`
	Planner planner.Status `json:"planner"`
}

func statusCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st statusResult
			if err := c.get("/api/status", &st); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:  %s\n", st.Status)
			fmt.Fprintf(out, "version: %s\n", st.Version)
			fmt.Fprintf(out, "session: %s %s\n", st.Planner.State, st.Planner.Email)
			fmt.Fprintf(out, "tasks:   %d", st.Planner.Tasks)
			switch {
			case st.Planner.Loading:
				fmt.Fprint(out, " (loading)")
			case st.Planner.Saving:
				fmt.Fprint(out, " (saving)")
			case st.Planner.Dirty:
				fmt.Fprint(out, " (unsaved changes)")
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

// --- session ---

type sessionResult struct {
	Token string        `json:"token"`
	User  auth.Identity `json:"user"`
}

func printSession(out io.Writer, s sessionResult) {
	fmt.Fprintf(out, "signed in as %s\n", s.User.Email)
	fmt.Fprintf(out, "export PLANNER_TOKEN=%s\n", s.Token)
}

func signInCmd(c *Client) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and print a session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s sessionResult
			err := c.post("/api/auth/signin", map[string]string{"email": email, "password": password}, &s)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func signUpCmd(c *Client) *cobra.Command {
	var email, password, confirm string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s sessionResult
			body := map[string]string{"email": email, "password": password, "confirm": confirm}
			if err := c.post("/api/auth/signup", body, &s); err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "repeat the password")
	return cmd
}

func signOutCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the session; unsaved changes are discarded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.post("/api/auth/signout", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

// --- tasks ---

func printTasks(out io.Writer, tasks []task.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "no tasks")
		return
	}
	fmt.Fprintf(out, "%-24s %-4s %-8s %-17s %s\n", "ID", "DONE", "PRIORITY", "DUE", "TITLE")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, t := range tasks {
		done := ""
		if t.Completed {
			done = "x"
		}
		fmt.Fprintf(out, "%-24s %-4s %-8s %-17s %s\n",
			t.ID, done, t.Priority.Label(), strings.TrimSpace(t.DueDate+" "+t.DueTime), t.Title)
	}
}

func tasksCmd(c *Client) *cobra.Command {
	var upcoming int
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/tasks"
			if upcoming > 0 {
				path = fmt.Sprintf("/api/upcoming?limit=%d", upcoming)
			}
			var tasks []task.Task
			if err := c.get(path, &tasks); err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().IntVarP(&upcoming, "upcoming", "u", 0, "show only the next N open tasks by due date")
	return cmd
}

func addCmd(c *Client) *cobra.Command {
	var d task.Draft
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task (kept locally until save)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d.Title = args[0]
			var t task.Task
			if err := c.post("/api/tasks", d, &t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", t.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&d.Description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&d.DueDate, "date", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&d.DueTime, "time", "", "due time (HH:MM)")
	cmd.Flags().StringVarP(&d.Priority, "priority", "p", string(task.PriorityMedium), "high, medium or low")
	cmd.Flags().StringVar(&d.Reminder, "reminder", "", "reminder lead time in minutes")
	return cmd
}

func toggleCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between open and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t task.Task
			if err := c.post("/api/tasks/"+args[0]+"/toggle", nil, &t); err != nil {
				return err
			}
			state := "open"
			if t.Completed {
				state = "completed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", t.ID, state)
			return nil
		},
	}
}

func clearCompletedCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var res map[string]int
			if err := c.post("/api/tasks/clear-completed", nil, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d task(s)\n", res["removed"])
			return nil
		},
	}
}

func clearCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.post("/api/tasks/clear", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all tasks removed; run save to persist")
			return nil
		},
	}
}

func saveCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Replace the stored task list with the local one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st planner.Status
			if err := c.post("/api/tasks/save", nil, &st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d task(s)\n", st.Tasks)
			return nil
		},
	}
}

// --- calendar ---

func printMonth(out io.Writer, m task.Month) {
	fmt.Fprintf(out, "%s\n", m.Title)
	fmt.Fprintln(out, "Su  Mo  Tu  We  Th  Fr  Sa")
	col := 0
	for range m.Blanks {
		fmt.Fprint(out, "    ")
		col++
	}
	for _, d := range m.Days {
		cell := fmt.Sprintf("%2d", d.Day)
		switch {
		case d.IsToday:
			cell += "<"
		case d.HasTask:
			cell += "*"
		default:
			cell += " "
		}
		fmt.Fprint(out, cell+" ")
		col++
		if col%7 == 0 {
			fmt.Fprintln(out)
		}
	}
	if col%7 != 0 {
		fmt.Fprintln(out)
	}
}

func calendarCmd(c *Client) *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show a month with task days marked, plus upcoming tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/calendar"
			if year > 0 && month > 0 {
				path = fmt.Sprintf("/api/calendar?year=%d&month=%d", year, month)
			}
			var m task.Month
			if err := c.get(path, &m); err != nil {
				return err
			}
			var up []task.Task
			if err := c.get("/api/upcoming", &up); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printMonth(out, m)
			fmt.Fprintln(out, "\nUpcoming:")
			printTasks(out, up)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default: current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default: current)")
	return cmd
}

// --- settings ---

func settingsCmd(c *Client) *cobra.Command {
	var notifications, sound, vibration bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change reminder settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			update := map[string]bool{}
			flags := cmd.Flags()
			if flags.Changed("notifications") {
				update["notificationsEnabled"] = notifications
			}
			if flags.Changed("sound") {
				update["soundEnabled"] = sound
			}
			if flags.Changed("vibration") {
				update["vibrationEnabled"] = vibration
			}

			var s planner.Settings
			var err error
			if len(update) > 0 {
				err = c.put("/api/settings", update, &s)
			} else {
				err = c.get("/api/settings", &s)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "notifications: %t\n", s.NotificationsEnabled)
			fmt.Fprintf(out, "sound:         %t\n", s.SoundEnabled)
			fmt.Fprintf(out, "vibration:     %t\n", s.VibrationEnabled)
			return nil
		},
	}
	cmd.Flags().BoolVar(&notifications, "notifications", true, "enable notifications")
	cmd.Flags().BoolVar(&sound, "sound", true, "enable sound")
	cmd.Flags().BoolVar(&vibration, "vibration", true, "enable vibration")
	return cmd
}
