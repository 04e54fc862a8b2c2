// Command meetingctl is the operator CLI for inspecting and administering
// jobs against the shared database.
package main

import "github.com/NguyenThaoVi0702/meeting-minutes-app/internal/meetingctl"

func main() {
	meetingctl.Execute()
}
