// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import "strings"

// String returns a description of the current version, including [commit] if
// it is known.
func String(commit string) string {
	var sb strings.Builder
	sb.WriteString(Client)
	sb.WriteString("/")
	sb.WriteString(Current.String())
	if commit != "" {
		sb.WriteString(" [commit=")
		sb.WriteString(commit)
		sb.WriteString("]")
	}
	return sb.String()
}
