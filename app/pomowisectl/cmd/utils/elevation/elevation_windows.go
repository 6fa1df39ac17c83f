//go:build windows

package elevation

import "golang.org/x/sys/windows"

// IsElevated checks whether the current process is running
// with elevated privileges (i.e., as a member of the Administrators group).
// On systems with UAC enabled, a non-elevated process in the Administrators group
// will still return false here.
func IsElevated() bool {
	h := windows.GetCurrentProcess()

	var token windows.Token
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()

	admSID, err := windows.CreateWellKnownSid(windows.WinBuiltinAdministratorsSid, nil)
	if err != nil {
		return false
	}

	isMember, err := token.IsMember(admSID)
	return err == nil && isMember
}

// Hint explains that an elevated prompt installs into the Administrator profile.
func Hint(installRoot string) string {
	return "Running from an elevated Administrator prompt. pomowise is installed into " + installRoot + ".\n" +
		"If that is not your own profile, rerun pomowisectl from a normal PowerShell window."
}
