// Package clientcmd builds the cobra commands that talk to a running rollq
// server over its HTTP API: appending entries, reading from an address,
// browsing history and listing roll policies.
package clientcmd
