package main

import (
	"fmt"
	"os"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// main 为管理账号生成 bcrypt 密码哈希。
//
// 输出用于 AGENTICFLOW_ADMIN_PASSWORD_HASH 环境变量,
// 服务端登录时用它校验管理员密码。
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: create-admin <password>")
		os.Exit(1)
	}

	password := os.Args[1]
	if err := validatePassword(password); err != nil {
		fmt.Printf("Invalid password: %v\n", err)
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Password hash generated!\n\n")
	fmt.Printf("  AGENTICFLOW_ADMIN_PASSWORD_HASH='%s'\n\n", hash)
	fmt.Println("Add the line above to your .env file (keep the single quotes,")
	fmt.Println("the hash contains $ characters).")
}

// validatePassword 最低密码强度:12 位以上,含大小写字母和数字
func validatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("must be at least 12 characters")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("must contain upper case, lower case and digit characters")
	}
	return nil
}
