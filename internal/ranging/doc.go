// Package ranging is the session manager for two-party UWB ranging.
//
// A Manager owns one session scope and at most one measurement
// subscription. Callers assign a role (SetRole or SetRoleAsync), start and
// stop ranging against a single peer, and observe the published
// MeasurementState cells. Every failure is turned into observable state and
// a report; nothing panics across the Manager boundary.
//
//	m := ranging.NewManager(radio, nil)
//	defer m.Close()
//
//	if err := m.SetRole(ctx, uwb.RoleController); err != nil {
//	    // status cells now read "Error"
//	}
//	_ = m.StartRanging(ctx, 1234, 9, 11)
//
//	dist, stop := m.State().Distance.Watch(1)
//	defer stop()
//	for d := range dist {
//	    fmt.Println(d)
//	}
package ranging
