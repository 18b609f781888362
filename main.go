package main

import "github.com/vibast-solutions/ms-go-razorpay/cmd"

func main() {
	cmd.Execute()
}
