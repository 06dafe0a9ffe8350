package scan

import (
	"fmt"
	"go/types"
	"hash/crc32"
)

// concreteTypeInfo caches the method set and fingerprint of one concrete
// runtime type.
type concreteTypeInfo struct {
	C      types.Type
	mset   *types.MethodSet
	fprint uint64
}

// interfaceTypeInfo caches the method set and fingerprint of one interface
// appearing at an invoke site.
type interfaceTypeInfo struct {
	I      *types.Interface
	mset   *types.MethodSet
	fprint uint64
}

// fingerprint returns a bitmask with one bit set per method id, letting
// implements reject most non-implementing candidates without a full
// types.Implements check.
func fingerprint(mset *types.MethodSet) uint64 {
	var space [64]byte
	var mask uint64
	for i := range mset.Len() {
		method := mset.At(i).Obj()
		sig := method.Type().(*types.Signature)
		sum := crc32.ChecksumIEEE(fmt.Appendf(space[:0], "%s/%d/%d",
			method.Id(),
			sig.Params().Len(),
			sig.Results().Len()))
		mask |= 1 << (sum % 64)
	}
	return mask
}

// implements reports whether cinfo.C implements iinfo.I. The fingerprint
// subset test rejects most candidates before the precise check runs.
func (s *Scanner) implements(cinfo *concreteTypeInfo, iinfo *interfaceTypeInfo) bool {
	return iinfo.fprint&^cinfo.fprint == 0 && types.Implements(cinfo.C, iinfo.I)
}

func (s *Scanner) concreteInfo(c types.Type) *concreteTypeInfo {
	if v := s.cinfos.At(c); v != nil {
		return v.(*concreteTypeInfo)
	}
	mset := s.prog.MethodSets.MethodSet(c)
	cinfo := &concreteTypeInfo{C: c, mset: mset, fprint: fingerprint(mset)}
	s.cinfos.Set(c, cinfo)
	return cinfo
}

func (s *Scanner) interfaceInfo(iface *types.Interface) *interfaceTypeInfo {
	if v := s.iinfos.At(iface); v != nil {
		return v.(*interfaceTypeInfo)
	}
	mset := s.prog.MethodSets.MethodSet(iface)
	iinfo := &interfaceTypeInfo{I: iface, mset: mset, fprint: fingerprint(mset)}
	s.iinfos.Set(iface, iinfo)
	return iinfo
}
