package viewer

// Key names follow the DOM KeyboardEvent.key values. Hosts with their own
// key vocabulary translate to these before calling HandleKey.
const (
	KeyArrowRight = "ArrowRight"
	KeyArrowLeft  = "ArrowLeft"
	KeyEscape     = "Escape"
	KeyPlus       = "+"
	KeyEqual      = "="
	KeyAdd        = "Add"
	KeyMinus      = "-"
	KeyUnderscore = "_"
	KeySubtract   = "Subtract"
)

// Modifiers are the modifier keys held during a key press.
type Modifiers struct {
	Ctrl bool
	Meta bool
}

// Binding is what a key press does.
type Binding struct {
	Kind           EventKind
	PreventDefault bool
}

var keyBindings = map[string]Binding{
	KeyArrowRight: {Kind: EventNext},
	KeyArrowLeft:  {Kind: EventPrev},
	KeyEscape:     {Kind: EventClose},
	KeyPlus:       {Kind: EventZoomIn, PreventDefault: true},
	KeyEqual:      {Kind: EventZoomIn, PreventDefault: true},
	KeyAdd:        {Kind: EventZoomIn, PreventDefault: true},
	KeyMinus:      {Kind: EventZoomOut, PreventDefault: true},
	KeyUnderscore: {Kind: EventZoomOut, PreventDefault: true},
	KeySubtract:   {Kind: EventZoomOut, PreventDefault: true},
}

// BindingForKey looks up key. Zoom keys are left to the host while Ctrl or
// Meta is held so browser zoom keeps working.
func BindingForKey(key string, mods Modifiers) (Binding, bool) {
	binding, ok := keyBindings[key]
	if !ok {
		return Binding{}, false
	}
	if (mods.Ctrl || mods.Meta) && (binding.Kind == EventZoomIn || binding.Kind == EventZoomOut) {
		return Binding{}, false
	}
	return binding, true
}
