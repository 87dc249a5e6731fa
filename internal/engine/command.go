package engine

import "fmt"

// CommandKind enumerates the engine requests sessionstarter issues.
type CommandKind int

const (
	CmdCountFunctions CommandKind = iota
	CmdAnalyze
	CmdListFunctions
	CmdFunctionOps
	CmdImports
	CmdInfo
	CmdReadBytes
	CmdSeek
	CmdRename
)

var commandNames = [...]string{
	CmdCountFunctions: "count-functions",
	CmdAnalyze:        "analyze",
	CmdListFunctions:  "list-functions",
	CmdFunctionOps:    "function-ops",
	CmdImports:        "imports",
	CmdInfo:           "info",
	CmdReadBytes:      "read-bytes",
	CmdSeek:           "seek",
	CmdRename:         "rename",
}

func (k CommandKind) String() string {
	if int(k) < len(commandNames) {
		return commandNames[k]
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Command is a typed engine request. Text renders it in r2 syntax; nothing
// outside this package formats command strings.
type Command struct {
	Kind     CommandKind
	Addr     uint64
	Size     uint64
	Name     string
	Analysis string // raw analysis command for CmdAnalyze, e.g. "aar"
}

// Text renders the command in r2 syntax.
func (c Command) Text() string {
	switch c.Kind {
	case CmdCountFunctions:
		return "aflc"
	case CmdAnalyze:
		return c.Analysis
	case CmdListFunctions:
		return "aflj"
	case CmdFunctionOps:
		return fmt.Sprintf("pdfj @ 0x%x", c.Addr)
	case CmdImports:
		return "iij"
	case CmdInfo:
		return "ij"
	case CmdReadBytes:
		return fmt.Sprintf("p8 %d @ 0x%x", c.Size, c.Addr)
	case CmdSeek:
		return fmt.Sprintf("s 0x%x", c.Addr)
	case CmdRename:
		return "afn " + c.Name
	}
	return ""
}
