// Package iptables programs host DNAT port forwards through the iptables
// wrapper bundled with the Docker engine.
package iptables

import (
	"strconv"
	"strings"

	"berth/internal/provision"
)

const chain = "PREROUTING"

// matchRules extracts handles from `iptables -L <chain> -n --line-numbers`
// output for every rule whose destination-port annotation equals hostPort.
// Matching is token-exact: port 80 must not match dpt:8080.
func matchRules(listing string, hostPort int) []provision.RuleHandle {
	want := "dpt:" + strconv.Itoa(hostPort)
	var handles []provision.RuleHandle
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		num, err := strconv.Atoi(fields[0])
		if err != nil {
			// Chain banner and column headers.
			continue
		}
		for _, field := range fields[1:] {
			if field == want {
				handles = append(handles, provision.RuleHandle{Chain: chain, Line: num})
				break
			}
		}
	}
	return handles
}
