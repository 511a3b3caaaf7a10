// Package plugin runs user Lua scripts against a branchpoints session.
//
// Scripts run in a sandboxed gopher-lua state: only the base, table, string
// and math libraries are opened, file loading functions are removed, and
// require resolves only those same built-in modules. A global table bp
// exposes the session:
//
//	bp.branch()          -- active branch identifier
//	bp.execute(id)       -- run a registered command, returns its result
//	bp.commands()        -- list of {id, title, category}
//	bp.count(branch)     -- stored breakpoint count for a branch
//	bp.log(msg)          -- write to the session log
//
// Every run is bounded by an execution timeout.
package plugin
