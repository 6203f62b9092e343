package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"taskflow/client"
	"taskflow/models"

	"github.com/spf13/cobra"
)

const clearScreen = "\033[H\033[2J"

func (a *app) watchCmd() *cobra.Command {
	var flags taskFilterFlags
	var noClear bool
	cmd := &cobra.Command{
		Use:   "watch <workspace-id>",
		Short: "Follow a workspace's tasks live until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, session, err := a.authed()
			if err != nil {
				return err
			}
			f, err := flags.filter()
			if err != nil {
				return err
			}

			store := client.NewWorkspaceStore(api, api, session.User.ID)
			defer store.Close()

			var (
				mu   sync.Mutex
				last string
				once sync.Once
			)
			lost := make(chan struct{})
			cancel := store.OnChange(func(st client.State) {
				if st.Loading {
					return
				}
				if st.Current == nil {
					once.Do(func() { close(lost) })
					return
				}
				body := a.watchBody(f.Apply(st.Tasks))

				mu.Lock()
				defer mu.Unlock()
				if body == last {
					return
				}
				last = body
				if !noClear && a.output == formatTable {
					fmt.Fprint(a.out, clearScreen)
				}
				if a.output == formatTable {
					fmt.Fprintf(a.out, "%s  (%s, %d members)  %s\n\n", st.Current.Name, st.CurrentRole, len(st.Members), time.Now().Format("15:04:05"))
				}
				fmt.Fprint(a.out, body)
			})
			defer cancel()

			if err := store.FetchWorkspace(cmd.Context(), args[0]); err != nil {
				return err
			}
			return waitWatch(cmd.Context(), lost)
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().BoolVar(&noClear, "no-clear", false, "append frames instead of clearing the screen")
	return cmd
}

// waitWatch bloqueia até a interrupção ou até o workspace deixar de estar acessível.
func waitWatch(ctx context.Context, lost <-chan struct{}) error {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	case <-lost:
		return fmt.Errorf("workspace closed: %w", models.ErrNotMember)
	}
}

// watchBody renderiza a lista de tarefas no formato de saída escolhido.
func (a *app) watchBody(tasks []models.Task) string {
	var sb strings.Builder
	view := *a
	view.out = &sb
	view.render(tasks, taskTable(tasks))
	return sb.String()
}
