package main

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/teleturbo/teleturbo/session"
)

type AccountArgs struct {
	AccountID int `json:"account_id,omitempty"`
}

type StartLoginArgs struct {
	AccountID int    `json:"account_id,omitempty"`
	Phone     string `json:"phone"`
}

type SubmitCodeArgs struct {
	AccountID int    `json:"account_id,omitempty"`
	Code      string `json:"code"`
}

type SubmitPasswordArgs struct {
	AccountID int    `json:"account_id,omitempty"`
	Password  string `json:"password"`
}

type StartDownloadArgs struct {
	AccountID   int    `json:"account_id,omitempty"`
	Link        string `json:"link"`
	Destination string `json:"destination,omitempty"`
	Threads     int    `json:"threads,omitempty"`
}

type DownloadArgs struct {
	TaskID string `json:"task_id"`
}

type GenerateIconArgs struct {
	Dir string `json:"dir,omitempty"`
}

// ensureAccountCtx resolves the account for a tool call and returns a
// context carrying its key. Account 1 is created on first use.
func ensureAccountCtx(ctx context.Context, app *AppServer, accountID int) (context.Context, error) {
	id := accountID
	if id == 0 {
		id = 1
	}
	acc, err := app.accounts.Get(id)
	if err != nil && id == 1 {
		acc, err = app.accounts.Create("", "")
	}
	if err != nil {
		return ctx, err
	}
	return session.WithAccount(ctx, acc.Key), nil
}

// InitMCPServer builds the MCP server exposing the service as tools.
func InitMCPServer(appServer *AppServer) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "teleturbo",
			Version: "1.0.0",
		},
		nil,
	)

	registerTools(server, appServer)

	logrus.Info("MCP server initialized")

	return server
}

func withPanicRecovery[T any](
	toolName string,
	handler func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error),
) func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error) {

	return func(ctx context.Context, req *mcp.CallToolRequest, args T) (result *mcp.CallToolResult, resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithFields(logrus.Fields{
					"tool":  toolName,
					"panic": r,
				}).Error("tool handler panicked")

				logrus.Errorf("stack trace:\n%s", debug.Stack())

				result = &mcp.CallToolResult{
					Content: []mcp.Content{
						&mcp.TextContent{
							Text: fmt.Sprintf("tool %s failed with an internal error: %v", toolName, r),
						},
					},
					IsError: true,
				}
				resp = nil
				err = nil
			}
		}()

		return handler(ctx, req, args)
	}
}

func textResult(v any) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func registerTools(server *mcp.Server, appServer *AppServer) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "system_info",
			Description: "Report host information used for download tuning (cpu cores, suggested parallelism, os, arch)",
		},
		withPanicRecovery("system_info", func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			return textResult(appServer.service.SystemInfo()), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_accounts",
			Description: "List configured Telegram accounts and their authorization state",
		},
		withPanicRecovery("list_accounts", func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			return textResult(appServer.accounts.List()), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "start_login",
			Description: "Start the phone login flow: sends a verification code to the given number",
		},
		withPanicRecovery("start_login", func(ctx context.Context, req *mcp.CallToolRequest, args StartLoginArgs) (*mcp.CallToolResult, any, error) {
			ctx, err := ensureAccountCtx(ctx, appServer, args.AccountID)
			if err != nil {
				return errorResult(err), nil, nil
			}
			result, err := appServer.service.StartLogin(ctx, args.Phone)
			if err != nil {
				return errorResult(err), nil, nil
			}
			return textResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "submit_code",
			Description: "Submit the verification code received via Telegram/SMS",
		},
		withPanicRecovery("submit_code", func(ctx context.Context, req *mcp.CallToolRequest, args SubmitCodeArgs) (*mcp.CallToolResult, any, error) {
			ctx, err := ensureAccountCtx(ctx, appServer, args.AccountID)
			if err != nil {
				return errorResult(err), nil, nil
			}
			result, err := appServer.service.SubmitCode(ctx, args.Code)
			if err != nil {
				return errorResult(err), nil, nil
			}
			return textResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "submit_password",
			Description: "Submit the 2FA cloud password when the login flow requires it",
		},
		withPanicRecovery("submit_password", func(ctx context.Context, req *mcp.CallToolRequest, args SubmitPasswordArgs) (*mcp.CallToolResult, any, error) {
			ctx, err := ensureAccountCtx(ctx, appServer, args.AccountID)
			if err != nil {
				return errorResult(err), nil, nil
			}
			result, err := appServer.service.SubmitPassword(ctx, args.Password)
			if err != nil {
				return errorResult(err), nil, nil
			}
			return textResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "login_status",
			Description: "Check whether the account is logged in",
		},
		withPanicRecovery("login_status", func(ctx context.Context, req *mcp.CallToolRequest, args AccountArgs) (*mcp.CallToolResult, any, error) {
			ctx, err := ensureAccountCtx(ctx, appServer, args.AccountID)
			if err != nil {
				return errorResult(err), nil, nil
			}
			result, err := appServer.service.LoginStatus(ctx)
			if err != nil {
				return errorResult(err), nil, nil
			}
			return textResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "start_download",
			Description: "Start a parallel download of the media in a t.me message link",
		},
		withPanicRecovery("start_download", func(ctx context.Context, req *mcp.CallToolRequest, args StartDownloadArgs) (*mcp.CallToolResult, any, error) {
			ctx, err := ensureAccountCtx(ctx, appServer, args.AccountID)
			if err != nil {
				return errorResult(err), nil, nil
			}
			result, err := appServer.service.StartDownload(ctx, &DownloadRequest{
				Link:        args.Link,
				Destination: args.Destination,
				Threads:     args.Threads,
			})
			if err != nil {
				return errorResult(err), nil, nil
			}
			return textResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "download_status",
			Description: "Report progress, speed and ETA of one download task",
		},
		withPanicRecovery("download_status", func(ctx context.Context, req *mcp.CallToolRequest, args DownloadArgs) (*mcp.CallToolResult, any, error) {
			info, err := appServer.service.GetDownload(args.TaskID)
			if err != nil {
				return errorResult(err), nil, nil
			}
			return textResult(info), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_downloads",
			Description: "List all download tasks as an aligned text table",
		},
		withPanicRecovery("list_downloads", func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: appServer.service.RenderDownloadsTable()}},
			}, nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "cancel_download",
			Description: "Cancel an active download task and remove the partial file",
		},
		withPanicRecovery("cancel_download", func(ctx context.Context, req *mcp.CallToolRequest, args DownloadArgs) (*mcp.CallToolResult, any, error) {
			if err := appServer.service.CancelDownload(args.TaskID); err != nil {
				return errorResult(err), nil, nil
			}
			return textResult(map[string]string{"task_id": args.TaskID, "status": "cancelled"}), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "generate_icon",
			Description: "Write the application icon (appicon.svg) into a directory",
		},
		withPanicRecovery("generate_icon", func(ctx context.Context, req *mcp.CallToolRequest, args GenerateIconArgs) (*mcp.CallToolResult, any, error) {
			result, err := appServer.service.GenerateIcon(args.Dir)
			if err != nil {
				return errorResult(err), nil, nil
			}
			return textResult(result), nil, nil
		}),
	)

	logrus.Infof("registered %d MCP tools", 11)
}
