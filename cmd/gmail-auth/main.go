package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/gmail"
)

// main 执行一次交互式的 Gmail OAuth 授权并缓存令牌。
//
// 服务端本身不做交互授权:Gmail 拉取要求令牌文件已经存在,
// 这个命令负责生成它。
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	credentials, err := os.ReadFile(cfg.Gmail.CredentialsFile)
	if err != nil {
		fmt.Printf("Failed to read credentials file %s: %v\n", cfg.Gmail.CredentialsFile, err)
		fmt.Println("\nDownload the OAuth client secret from Google Cloud Console and save it")
		fmt.Println("to the path configured by AGENTICFLOW_GMAIL_CREDENTIALS_FILE.")
		os.Exit(1)
	}

	oauthConfig, err := google.ConfigFromJSON(credentials, gmailapi.GmailModifyScope)
	if err != nil {
		fmt.Printf("Failed to parse credentials file: %v\n", err)
		os.Exit(1)
	}

	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Println("Open the following URL in your browser and authorize the application:")
	fmt.Printf("\n  %s\n\n", authURL)
	fmt.Print("Enter the authorization code: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		fmt.Printf("Failed to read authorization code: %v\n", err)
		os.Exit(1)
	}

	token, err := oauthConfig.Exchange(context.Background(), trimNewline(code))
	if err != nil {
		fmt.Printf("Failed to exchange authorization code: %v\n", err)
		os.Exit(1)
	}

	if err := gmail.SaveToken(cfg.Gmail.TokenFile, token); err != nil {
		fmt.Printf("Failed to save token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Token saved to %s\n", cfg.Gmail.TokenFile)
	fmt.Println("Set AGENTICFLOW_GMAIL_ENABLED=true to start fetching mail.")
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
