package scriptbridge

// Finalizable is implemented by host values that require cleanup when the
// environment releases ownership of them. Finalize is invoked exactly once
// per owned instance, by the collector or by environment teardown.
type Finalizable interface {
	Finalize()
}

// Invoker is implemented by stateful callables bound as script functions.
// A plain Invoker offered at the boundary is copied into boundary-owned
// storage; wrap it with ownership.Ref to borrow the host instance instead.
type Invoker interface {
	Invoke(args ...any) any
}

// FuncConvertible marks a callable that carries no per-call state and can
// be reduced to a plain function. Such values cross the boundary as the
// returned function, without a copy and without a finalizer.
type FuncConvertible interface {
	Func() any
}
