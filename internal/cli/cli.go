package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ignatij/taskboard/internal/log"
	"github.com/ignatij/taskboard/internal/service"
	internal_storage "github.com/ignatij/taskboard/internal/storage"
	"github.com/ignatij/taskboard/pkg/models"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	depCmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage task dependencies",
	}

	depAddCmd := &cobra.Command{
		Use:   "add [dependent-task-id] [blocking-task-id] [type]",
		Short: "Create a dependency edge between two tasks",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			dependentID := parseID(args[0])
			blockingID := parseID(args[1])
			dep, err := eng.Dependencies.CreateDependency(dependentID, blockingID, models.DependencyType(args[2]))
			if err != nil {
				fail("failed to create dependency", err)
			}
			fmt.Fprintf(os.Stdout, "Created dependency %d: task %s waits on task %s\n",
				dep.ID, dep.DependentTask.Key, dep.BlockingTask.Key)
		},
	}

	depRmCmd := &cobra.Command{
		Use:   "rm [dependency-id]",
		Short: "Delete a dependency edge",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			id := parseID(args[0])
			if err := eng.Dependencies.DeleteDependency(id); err != nil {
				fail("failed to delete dependency", err)
			}
			fmt.Fprintf(os.Stdout, "Deleted dependency %d\n", id)
		},
	}

	depListCmd := &cobra.Command{
		Use:   "list [task-id]",
		Short: "List a task's dependencies grouped by direction",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			relations, err := eng.Dependencies.GetTaskDependencies(parseID(args[0]))
			if err != nil {
				fail("failed to list dependencies", err)
			}
			printJSON(relations)
		},
	}
	depCmd.AddCommand(depAddCmd, depRmCmd, depListCmd)

	blockingCmd := &cobra.Command{
		Use:   "blocking [task-id]",
		Short: "Show whether a task is blocked and by what",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			info, err := eng.Dependencies.GetBlockingInfo(parseID(args[0]))
			if err != nil {
				fail("failed to get blocking info", err)
			}
			printJSON(info)
		},
	}

	subtasksCmd := &cobra.Command{
		Use:   "subtasks [parent-task-id]",
		Short: "Summarize the direct subtasks of a parent",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			summary, err := eng.Dependencies.GetSubtaskSummary(parseID(args[0]))
			if err != nil {
				fail("failed to summarize subtasks", err)
			}
			printJSON(summary)
		},
	}

	treeCmd := &cobra.Command{
		Use:   "tree [root-task-id]",
		Short: "Print the task tree under a root, bounded by --depth",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			depth, _ := cmd.Flags().GetInt("depth")
			tree, err := eng.Hierarchy.BuildTaskTree(parseID(args[0]), depth)
			if err != nil {
				fail("failed to build task tree", err)
			}
			printJSON(tree)
		},
	}
	treeCmd.Flags().Int("depth", 0, "Maximum tree depth (default 5)")

	moveCmd := &cobra.Command{
		Use:   "move [task-id]",
		Short: "Re-parent a task; omit --parent to detach it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			taskID := parseID(args[0])
			var newParent *int64
			if cmd.Flags().Changed("parent") {
				p, _ := cmd.Flags().GetInt64("parent")
				newParent = &p
			}
			if err := eng.Hierarchy.MoveTask(taskID, newParent); err != nil {
				fail("failed to move task", err)
			}
			fmt.Fprintf(os.Stdout, "Moved task %d\n", taskID)
		},
	}
	moveCmd.Flags().Int64("parent", 0, "New parent task ID")

	transitionCmd := &cobra.Command{
		Use:   "transition [task-id] [to-status]",
		Short: "Transition a task to a new status",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			taskID := parseID(args[0])
			workflow, _ := cmd.Flags().GetString("workflow")
			roleFlag, _ := cmd.Flags().GetString("role")
			role := models.ProjectRole(roleFlag)
			if !cmd.Flags().Changed("role") && cmd.Flags().Changed("user") {
				userID, _ := cmd.Flags().GetInt64("user")
				resolved, err := eng.RoleForTask(taskID, userID)
				if err != nil {
					fail("failed to resolve role", err)
				}
				role = resolved
			}
			err := eng.Tasks.TransitionStatus(taskID,
				models.TaskStatus(args[1]),
				models.WorkflowType(workflow),
				role)
			if err != nil {
				fail("failed to transition task", err)
			}
			fmt.Fprintf(os.Stdout, "Transitioned task %d to %s\n", taskID, args[1])
		},
	}

	transitionsCmd := &cobra.Command{
		Use:   "transitions [task-id]",
		Short: "List the transitions available to a task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			workflow, _ := cmd.Flags().GetString("workflow")
			role, _ := cmd.Flags().GetString("role")
			rules, err := eng.Tasks.AvailableTransitions(parseID(args[0]),
				models.WorkflowType(workflow),
				models.ProjectRole(role))
			if err != nil {
				fail("failed to list transitions", err)
			}
			printJSON(rules)
		},
	}

	graphCmd := &cobra.Command{
		Use:   "graph [project-id]",
		Short: "Print a project's full dependency graph with cycle diagnostics",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng, store := initEngine(cmd)
			defer store.Close()
			graph, err := eng.Dependencies.GenerateDependencyGraph(parseID(args[0]))
			if err != nil {
				fail("failed to generate dependency graph", err)
			}
			printJSON(graph)
		},
	}

	for _, c := range []*cobra.Command{transitionCmd, transitionsCmd} {
		c.Flags().String("workflow", string(models.BasicWorkflow), "Workflow type (BASIC, AGILE, BUG_TRACKING, CUSTOM)")
		c.Flags().String("role", string(models.DeveloperRole), "Acting project role")
	}
	transitionCmd.Flags().Int64("user", 0, "Resolve the acting role from this user's project membership")

	rootCmd.AddCommand(depCmd, blockingCmd, subtasksCmd, treeCmd, moveCmd, transitionCmd, transitionsCmd, graphCmd)
}

func initEngine(cmd *cobra.Command) (*service.Engine, *internal_storage.PostgresStore) {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		os.Exit(1)
	}
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return service.NewEngine(store), store
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid id %q\n", raw)
		os.Exit(1)
	}
	return id
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("failed to encode output", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
}

func fail(msg string, err error) {
	log.GetLogger().Errorf("%s: %v", msg, err)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
