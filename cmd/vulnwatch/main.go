package main

import "github.com/yorozuya-cybersecurity/vulnwatch/pkg/cli"

func main() {
	cli.Execute()
}
