package mode

// Dirty-form registry: marcadores advisory de edits sin guardar. Los
// componentes de UI optan entrando/saliendo; un registry no vacío bloquea
// los cambios de modo destructivos hasta confirmación explícita.

// MarkFormDirty registra un formulario con edits sin guardar.
func (s *Selector) MarkFormDirty(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.dirty[id] = struct{}{}
	s.mu.Unlock()
}

// ClearFormDirty desregistra un formulario (guardado o descartado).
func (s *Selector) ClearFormDirty(id string) {
	s.mu.Lock()
	delete(s.dirty, id)
	s.mu.Unlock()
}

// DirtyFormCount retorna cuántos formularios tienen edits sin guardar.
func (s *Selector) DirtyFormCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty)
}

// ClearDirtyForms vacía el registry completo. Se usa cuando el usuario
// confirma un switch destructivo.
func (s *Selector) ClearDirtyForms() {
	s.mu.Lock()
	s.dirty = map[string]struct{}{}
	s.mu.Unlock()
}
