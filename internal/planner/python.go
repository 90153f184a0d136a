// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package planner

// pythonKeywords is the reserved-word set of the target Python syntax,
// including the match/case soft keywords, which are treated as
// reserved to stay rename-safe across versions.
var pythonKeywords = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await",
	"break", "case", "class", "continue", "def", "del", "elif", "else",
	"except", "finally", "for", "from", "global", "if", "import", "in",
	"is", "lambda", "match", "nonlocal", "not", "or", "pass", "raise",
	"return", "try", "while", "with", "yield",
}

// pythonBuiltins snapshots the CPython builtins namespace for the
// target syntax. Bindings shadowing a builtin are never renamed, and
// generated names never collide with one.
var pythonBuiltins = []string{
	"ArithmeticError", "AssertionError", "AttributeError", "BaseException",
	"BaseExceptionGroup", "BlockingIOError", "BrokenPipeError", "BufferError",
	"BytesWarning", "ChildProcessError", "ConnectionAbortedError",
	"ConnectionError", "ConnectionRefusedError", "ConnectionResetError",
	"DeprecationWarning", "EOFError", "Ellipsis", "EncodingWarning",
	"EnvironmentError", "Exception", "ExceptionGroup", "FileExistsError",
	"FileNotFoundError", "FloatingPointError", "FutureWarning",
	"GeneratorExit", "IOError", "ImportError", "ImportWarning",
	"IndentationError", "IndexError", "InterruptedError",
	"IsADirectoryError", "KeyError", "KeyboardInterrupt", "LookupError",
	"MemoryError", "ModuleNotFoundError", "NameError", "NotADirectoryError",
	"NotImplemented", "NotImplementedError", "OSError", "OverflowError",
	"PendingDeprecationWarning", "PermissionError", "ProcessLookupError",
	"RecursionError", "ReferenceError", "ResourceWarning", "RuntimeError",
	"RuntimeWarning", "StopAsyncIteration", "StopIteration", "SyntaxError",
	"SyntaxWarning", "SystemError", "SystemExit", "TabError", "TimeoutError",
	"TypeError", "UnboundLocalError", "UnicodeDecodeError",
	"UnicodeEncodeError", "UnicodeError", "UnicodeTranslateError",
	"UnicodeWarning", "UserWarning", "ValueError", "Warning",
	"ZeroDivisionError", "__build_class__", "__builtins__", "__debug__",
	"__doc__", "__import__", "__loader__", "__name__", "__package__",
	"__spec__", "abs", "aiter", "anext", "all", "any", "ascii", "bin",
	"bool", "breakpoint", "bytearray", "bytes", "callable", "chr",
	"classmethod", "compile", "complex", "copyright", "credits",
	"delattr", "dict", "dir", "divmod", "enumerate", "eval", "exec",
	"exit", "filter", "float", "format", "frozenset", "getattr",
	"globals", "hasattr", "hash", "help", "hex", "id", "input", "int",
	"isinstance", "issubclass", "iter", "len", "license", "list",
	"locals", "map", "max", "memoryview", "min", "next", "object",
	"oct", "open", "ord", "pow", "print", "property", "quit", "range",
	"repr", "reversed", "round", "set", "setattr", "slice", "sorted",
	"staticmethod", "str", "sum", "super", "tuple", "type", "vars",
	"zip",
}

// reservedIdentifiers are conventional names never renamed even though
// the language does not reserve them.
var reservedIdentifiers = []string{"self", "cls", "_"}

var (
	keywordSet = make(map[string]bool, len(pythonKeywords))
	builtinSet = make(map[string]bool, len(pythonBuiltins))
)

func init() {
	for _, kw := range pythonKeywords {
		keywordSet[kw] = true
	}
	for _, b := range pythonBuiltins {
		builtinSet[b] = true
	}
}

// reflectionCallees are bare-name callees that inspect the local
// namespace; any call through one makes renaming unsafe.
var reflectionCallees = map[string]bool{
	"locals": true,
	"vars":   true,
	"eval":   true,
	"exec":   true,
}
