package elrpc

import "fmt"

// Frame head symbols, per SPEC_FULL.md §6.
const (
	headCall         = "call"
	headReturn       = "return"
	headReturnError  = "return-error"
	headEPCError     = "epc-error"
	headMethodsQuery = "methods"
)

func newCallFrame(uid uint64, method string, args Value) Value {
	return List(Symbol(headCall), Integer(int64(uid)), Symbol(method), args)
}

func newReturnFrame(uid uint64, result Value) Value {
	return List(Symbol(headReturn), Integer(int64(uid)), result)
}

func newReturnErrorFrame(uid uint64, appErr *ApplicationError) Value {
	backtrace := make([]Value, len(appErr.Backtrace))
	for i, line := range appErr.Backtrace {
		backtrace[i] = String(line)
	}
	triple := List(Symbol(appErr.Class), String(appErr.Message), List(backtrace...))
	return List(Symbol(headReturnError), Integer(int64(uid)), triple)
}

func newEPCErrorFrame(uid uint64, message string) Value {
	return List(Symbol(headEPCError), Integer(int64(uid)), String(message))
}

func newMethodsQueryFrame(uid uint64) Value {
	return List(Symbol(headMethodsQuery), Integer(int64(uid)))
}

func newMethodsReturnFrame(uid uint64, entries []MethodInfo) Value {
	items := make([]Value, len(entries))
	for i, e := range entries {
		items[i] = List(String(e.Name), String(e.ArgSpec), String(e.Docstring))
	}
	return newReturnFrame(uid, List(items...))
}

// frameKind discriminates a decoded frame by its head symbol.
type frameKind int

const (
	frameUnknown frameKind = iota
	frameCall
	frameReturn
	frameReturnError
	frameEPCError
	frameMethodsQuery
)

// decodedFrame is the result of classifying a parsed Value against the
// frame grammar.
type decodedFrame struct {
	kind   frameKind
	uid    uint64
	method string
	args   Value
	result Value
	appErr *ApplicationError
	errMsg string
}

// classifyFrame inspects a parsed top-level Value and extracts the fields
// relevant to its frame kind, or returns a *ProtocolError describing why it
// does not match any recognized shape.
func classifyFrame(v Value) (decodedFrame, error) {
	items, ok := v.Slice()
	if !ok || len(items) < 2 {
		return decodedFrame{}, &ProtocolError{Message: "frame must be a list of at least (head uid)"}
	}
	head, ok := items[0].SymbolName()
	if !ok {
		return decodedFrame{}, &ProtocolError{Message: "frame head must be a symbol"}
	}
	uidInt, ok := items[1].IntegerValue()
	if !ok || uidInt < 0 {
		return decodedFrame{}, &ProtocolError{Message: fmt.Sprintf("frame %q uid must be a non-negative integer", head)}
	}
	uid := uint64(uidInt)

	switch head {
	case headCall:
		if len(items) != 4 {
			return decodedFrame{}, &ProtocolError{Message: "call frame must have 4 elements"}
		}
		method, ok := symbolOrStringName(items[2])
		if !ok {
			return decodedFrame{}, &ProtocolError{Message: "call method name must be a symbol or string"}
		}
		return decodedFrame{kind: frameCall, uid: uid, method: method, args: items[3]}, nil

	case headReturn:
		if len(items) != 3 {
			return decodedFrame{}, &ProtocolError{Message: "return frame must have 3 elements"}
		}
		return decodedFrame{kind: frameReturn, uid: uid, result: items[2]}, nil

	case headReturnError:
		if len(items) != 3 {
			return decodedFrame{}, &ProtocolError{Message: "return-error frame must have 3 elements"}
		}
		appErr, err := decodeReturnError(items[2])
		if err != nil {
			return decodedFrame{}, err
		}
		return decodedFrame{kind: frameReturnError, uid: uid, appErr: appErr}, nil

	case headEPCError:
		if len(items) != 3 {
			return decodedFrame{}, &ProtocolError{Message: "epc-error frame must have 3 elements"}
		}
		msg, ok := items[2].StringValue()
		if !ok {
			return decodedFrame{}, &ProtocolError{Message: "epc-error message must be a string"}
		}
		return decodedFrame{kind: frameEPCError, uid: uid, errMsg: msg}, nil

	case headMethodsQuery:
		if len(items) != 2 {
			return decodedFrame{}, &ProtocolError{Message: "methods frame must have 2 elements"}
		}
		return decodedFrame{kind: frameMethodsQuery, uid: uid}, nil

	default:
		return decodedFrame{}, &ProtocolError{Message: fmt.Sprintf("unknown frame head %q", head)}
	}
}

func symbolOrStringName(v Value) (string, bool) {
	if name, ok := v.SymbolName(); ok {
		return name, true
	}
	if s, ok := v.StringValue(); ok {
		return s, true
	}
	return "", false
}

// decodeReturnError accepts both the (class message backtrace) triple this
// implementation sends and the bare-string shape some Emacs-side EPC peers
// send instead (SPEC_FULL.md Design Notes: "Emacs compatibility quirk").
func decodeReturnError(v Value) (*ApplicationError, error) {
	if s, ok := v.StringValue(); ok {
		return &ApplicationError{Class: "error", Message: s}, nil
	}
	items, ok := v.Slice()
	if !ok || len(items) < 2 {
		return nil, &ProtocolError{Message: "return-error payload must be a string or a (class message [backtrace]) list"}
	}
	class, ok := symbolOrStringName(items[0])
	if !ok {
		return nil, &ProtocolError{Message: "return-error class must be a symbol or string"}
	}
	message, ok := items[1].StringValue()
	if !ok {
		return nil, &ProtocolError{Message: "return-error message must be a string"}
	}
	var backtrace []string
	if len(items) >= 3 {
		frames, ok := items[2].Slice()
		if !ok {
			return nil, &ProtocolError{Message: "return-error backtrace must be a list of strings"}
		}
		for _, f := range frames {
			line, ok := f.StringValue()
			if !ok {
				return nil, &ProtocolError{Message: "return-error backtrace entries must be strings"}
			}
			backtrace = append(backtrace, line)
		}
	}
	return &ApplicationError{Class: class, Message: message, Backtrace: backtrace}, nil
}

// methodsFromValue decodes a methods-query return payload (a list of
// (name arg-spec doc) triples) into []MethodInfo.
func methodsFromValue(v Value) ([]MethodInfo, error) {
	items, ok := v.Slice()
	if !ok {
		return nil, &SerializationError{Reason: "methods response must be a list"}
	}
	out := make([]MethodInfo, 0, len(items))
	for _, item := range items {
		fields, ok := item.Slice()
		if !ok || len(fields) != 3 {
			return nil, &SerializationError{Reason: "methods entry must be a (name arg-spec doc) triple"}
		}
		name, ok1 := symbolOrStringName(fields[0])
		argSpec, ok2 := fields[1].StringValue()
		doc, ok3 := fields[2].StringValue()
		if !ok1 || !ok2 || !ok3 {
			return nil, &SerializationError{Reason: "methods entry fields must be name/arg-spec/doc strings"}
		}
		out = append(out, MethodInfo{Name: name, ArgSpec: argSpec, Docstring: doc})
	}
	return out, nil
}
