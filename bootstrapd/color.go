package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func Red(s string) string {
	red := color.New(color.FgHiRed)
	red.EnableColor()
	return red.SprintFunc()(s)
}

func Yellow(s string) string {
	yellow := color.New(color.FgHiYellow)
	yellow.EnableColor()
	return yellow.SprintFunc()(s)
}

func PrintFatal(msg string, args ...interface{}) {
	os.Stderr.WriteString(Red(fmt.Sprintf(msg, args...)) + "\n")
	os.Exit(1)
}
