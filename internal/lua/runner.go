package lua

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Request is the read-only view of an ask query handed to prepare().
type Request struct {
	QueryID  string
	UserID   string
	FromNode string
	ToNode   string
	Provider string
}

// PrepareResult is the result of running a Lua query preparer script.
type PrepareResult struct {
	Query     string // rewritten query (or the reply when SendToLLM is false)
	SendToLLM bool   // if false, skip the provider and answer with Query
}

// Preparer runs a compiled prepare(text, request) script. The script is
// compiled once; every call gets a fresh interpreter, so scripts keep no
// state between queries.
type Preparer struct {
	path  string
	proto *lua.FunctionProto
}

// Load compiles the script at scriptPath.
func Load(scriptPath string) (*Preparer, error) {
	absPath, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("script path: %w", err)
	}
	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	chunk, err := parse.Parse(f, absPath)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	proto, err := lua.Compile(chunk, absPath)
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}
	return &Preparer{path: absPath, proto: proto}, nil
}

func (p *Preparer) Path() string { return p.path }

// Prepare calls the script's global prepare(text, request). The script must
// return either a string (the new query) or a table with send_to_llm (bool)
// and message (string) to answer without calling the provider.
func (p *Preparer) Prepare(ctx context.Context, text string, req Request) (*PrepareResult, error) {
	lState := lua.NewState()
	defer lState.Close()
	lState.SetContext(ctx)

	// Allow os.getenv so scripts can read env vars.
	lState.PreloadModule("os", osModuleLoader)

	lState.Push(lState.NewFunctionFromProto(p.proto))
	if err := lState.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}

	fn := lState.GetGlobal("prepare")
	if fn.Type() == lua.LTNil {
		return nil, fmt.Errorf("script must define global function prepare(text)")
	}
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("prepare must be a function, got %s", fn.Type().String())
	}

	reqTable := lState.NewTable()
	lState.SetField(reqTable, "query_id", lua.LString(req.QueryID))
	lState.SetField(reqTable, "user_id", lua.LString(req.UserID))
	lState.SetField(reqTable, "from_node", lua.LString(req.FromNode))
	lState.SetField(reqTable, "to_node", lua.LString(req.ToNode))
	lState.SetField(reqTable, "provider", lua.LString(req.Provider))

	lState.Push(fn)
	lState.Push(lua.LString(text))
	lState.Push(reqTable)
	if err := lState.PCall(2, 1, nil); err != nil {
		return nil, fmt.Errorf("prepare(): %w", err)
	}

	ret := lState.Get(-1)
	lState.Pop(1)

	switch ret.Type() {
	case lua.LTString:
		return &PrepareResult{Query: ret.String(), SendToLLM: true}, nil
	case lua.LTTable:
		tbl := ret.(*lua.LTable)
		result := &PrepareResult{Query: text, SendToLLM: true}
		tbl.ForEach(func(k, v lua.LValue) {
			if k.String() == "send_to_llm" && v.Type() == lua.LTBool {
				result.SendToLLM = v.(lua.LBool) == lua.LTrue
			}
			if k.String() == "message" && v.Type() == lua.LTString {
				result.Query = v.String()
			}
		})
		return result, nil
	default:
		return nil, fmt.Errorf("prepare() must return string or table { send_to_llm, message }, got %s", ret.Type().String())
	}
}

// osModuleLoader provides a minimal os module: getenv and time.
func osModuleLoader(lState *lua.LState) int {
	mod := lState.NewTable()
	lState.SetField(mod, "getenv", lState.NewFunction(func(ls *lua.LState) int {
		key := ls.CheckString(1)
		val := os.Getenv(key)
		ls.Push(lua.LString(val))
		return 1
	}))
	lState.SetField(mod, "time", lState.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))
	lState.Push(mod)
	return 1
}
